package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andresmejia3/eigensentinel/internal/utils"
	"github.com/spf13/cobra"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop all saved evaluation reports",
	Long:  "Drops the report tables. They are recreated empty the next time the store is opened.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if !resetYes && !confirm(bufio.NewReader(os.Stdin), os.Stdout, "⚠️  Are you sure you want to DROP all report tables?") {
			fmt.Println("Aborted.")
			return nil
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			utils.ShowError("Failed to open report store", err)
			return err
		}
		fmt.Println("🗑️  Clearing Database...")
		if err := db.Reset(cmd.Context()); err != nil {
			utils.ShowError("Failed to reset database", err)
			return err
		}
		fmt.Println("✨ Reset Complete.")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(resetCmd)
}

func confirm(r *bufio.Reader, w io.Writer, prompt string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}
