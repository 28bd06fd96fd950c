// Package dataanchor anchors arbitrary payloads to a ledger and retrieves
// them again.
//
// A payload is split into chunks that fit one ledger transaction each. Every
// chunk is appended to a container, an on-ledger account owned by the blober
// program and addressed either by a namespace or by its address. Chunks carry
// their position, so a payload can be rebuilt from its transaction signatures
// in any order, or fetched from an indexer by slot.
//
// # Basic Usage
//
// Dial a ledger, ensure the container exists and upload a payload:
//
//	payer, err := dataanchor.LoadKeypair("id.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := dataanchor.Dial(dataanchor.Config{
//	    RPCURL:     "http://localhost:8899",
//	    IndexerURL: "http://localhost:9696",
//	}, dataanchor.WithPayer(payer))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	id := dataanchor.Namespace("rewards")
//	if _, err := client.Initialize(ctx, nil, id); err != nil {
//	    log.Fatal(err)
//	}
//	outcomes, container, err := client.Upload(ctx, data, dataanchor.DefaultFee(), id)
//
//	// Rebuild the payload from the ledger alone
//	sigs := make([]dataanchor.Signature, len(outcomes))
//	for i, o := range outcomes {
//	    sigs[i] = o.Signature
//	}
//	payload, err := client.GetBySignatures(ctx, dataanchor.Address(container), sigs)
//
// # Indexer
//
// GetBlobs and GetProof report a slot the indexer has not processed yet with
// ok == false rather than an error. VerifyProof checks a proof against the
// blobs it covers.
//
// # Errors
//
// Failures wrap the sentinel errors of this package and are tested with
// errors.Is. Ledger failures are *TransactionError values classified by the
// failing instruction, and upload failures are *UploadError values carrying
// the state of every chunk.
package dataanchor
