package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/perchmsg/relaycore/internal/event"
)

// KeyPair is the keygen command's output payload.
type KeyPair struct {
	SecretKey string `json:"secret_key"`
	PublicKey string `json:"public_key"`
}

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a signing key pair",
		Long: `Generate a fresh secp256k1 key pair for signing events.

Both keys are printed as lowercase hex. Keep the secret key private; the
public key is the identity events carry on the wire.

Example:
  relayd keygen
  relayd keygen --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeygen(rootOpts, cmd)
		},
	}

	return cmd
}

func runKeygen(opts *RootOptions, cmd *cobra.Command) error {
	sk, pk, err := event.GenerateKey()
	if err != nil {
		return WrapExitError(ExitFailure, "key generation failed", err)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
		return formatter.Success(KeyPair{SecretKey: sk, PublicKey: pk})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "secret key: %s\n", sk)
	fmt.Fprintf(cmd.OutOrStdout(), "public key: %s\n", pk)
	return nil
}
