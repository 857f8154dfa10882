package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/luca-patrignani/treecast/network"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a fresh Ed25519 key pair for signing frames",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			private, public := network.GenerateKeyPair()
			hexPrivate, err := network.EncodePrivateKey(private)
			if err != nil {
				return err
			}
			hexPublic, err := network.EncodePublicKey(public)
			if err != nil {
				return err
			}
			pterm.Fprintln(cmd.OutOrStdout(), "private_key: "+hexPrivate)
			pterm.Fprintln(cmd.OutOrStdout(), "public_key:  "+hexPublic)
			return nil
		},
	}
}
