package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/TitanMedia/internal/scenegraph"
)

type exportOptions struct {
	*rootOptions
	YAML bool
}

func newExportCommand(root *rootOptions) *cobra.Command {
	opts := &exportOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write the stored scene collection to a file or stdout",
		Long: `Read the scene collection from the configured store and write it as
JSON, or YAML for a .yaml/.yml file or with --yaml.

Example:
  titan export -c studio.yaml backup.json
  titan export --yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			st, err := requireStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			snap, found, err := st.LoadSceneCollection(cmd.Context())
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no scene collection stored for studio %q", cfg.StudioID())
			}
			if len(args) == 1 {
				if err := scenegraph.WriteSnapshotFile(args[0], snap); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %d scenes to %s\n", len(snap.Scenes), args[0])
				return nil
			}
			b, err := scenegraph.MarshalSnapshot(snap, opts.YAML)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(b, '\n'))
			return err
		},
	}
	cmd.Flags().BoolVar(&opts.YAML, "yaml", false, "write YAML to stdout instead of JSON")
	return cmd
}

func newImportCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the stored scene collection with a snapshot file",
		Long: `Validate a JSON or YAML snapshot and write it to the configured store,
replacing the stored collection. The running studio picks it up on its
next load.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			snap, err := scenegraph.LoadSnapshotFile(args[0])
			if err != nil {
				return err
			}
			if _, err := scenegraph.FromSnapshot(*snap); err != nil {
				return fmt.Errorf("invalid scene collection: %w", err)
			}

			st, err := requireStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.SaveSceneCollection(cmd.Context(), *snap); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d scenes\n", len(snap.Scenes))
			return nil
		},
	}
}
