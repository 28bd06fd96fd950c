package dataanchor

// ProgressEvent represents a progress update during an upload.
type ProgressEvent struct {
	// Operation identifies the operation type ("upload").
	Operation string
	// BytesTransferred is the cumulative number of chunk bytes confirmed.
	BytesTransferred int64
	// TotalBytes is the total number of bytes being anchored, after compression.
	TotalBytes int64
}

// ProgressCallback is called during uploads to report progress.
// Calls are serialized. Implementations should be efficient as this may be
// called once per chunk.
type ProgressCallback func(event ProgressEvent)
