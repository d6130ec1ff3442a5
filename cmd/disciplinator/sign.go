package main

import (
	"github.com/spf13/cobra"

	"github.com/disciplinator/disciplinator/internal/crypto"
	"github.com/disciplinator/disciplinator/internal/signing"
	"github.com/disciplinator/disciplinator/internal/state"
	"github.com/disciplinator/disciplinator/internal/state/statekey"
)

type markRequest struct {
	Challenge statekey.Key          `cbor:"1,keyasint"`
	ProofRef  string                `cbor:"2,keyasint"`
	Metadata  state.SessionMetadata `cbor:"3,keyasint"`
}

type graceRequest struct {
	Challenge statekey.Key `cbor:"1,keyasint"`
	Reason    string       `cbor:"2,keyasint"`
}

func keyFlag(cmd *cobra.Command, role string) {
	cmd.Flags().String("key", "", "base58 private key of the "+role+" (required)")
	_ = cmd.MarkFlagRequired("key")
}

// authorize signs params with the --key flag and verifies the request the
// way a remote host would, returning the authenticated signer and the
// parameters as they were signed.
func authorize[T any](cmd *cobra.Command, op string, params T) (crypto.Identity, T, error) {
	key, err := cmd.Flags().GetString("key")
	if err != nil {
		return crypto.Identity{}, params, err
	}
	signer, err := signing.ParseSigner(key)
	if err != nil {
		return crypto.Identity{}, params, err
	}
	req, err := signer.Sign(op, params)
	if err != nil {
		return crypto.Identity{}, params, err
	}
	return signing.Open[T](req, op)
}
