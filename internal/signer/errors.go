package signer

import "errors"

var (
	errNoLocalSigner  = errors.New("signer gateway: no local signer configured")
	errNoRemoteSigner = errors.New("signer gateway: no remote signer configured")
	errOnChainFailure = errors.New("signer gateway: transaction landed with failed status")
)
