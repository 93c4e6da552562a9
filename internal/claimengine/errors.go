package claimengine

import "errors"

var errNoClaimTransaction = errors.New("claimengine: platform returned no claim transaction for requested mint")
