package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/popup-studio/internal/audit"
	"github.com/ziadkadry99/popup-studio/internal/auth"
)

var userRole string

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts of the local widget store",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create an account (prompts for the password)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role := auth.Role(userRole)
		if !role.Valid() {
			return fmt.Errorf("unknown role %q (valid: admin, editor, viewer)", userRole)
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reg, err := newRegistry()
		if err != nil {
			return err
		}
		ws, err := openWorkspace(cfg, reg)
		if err != nil {
			return err
		}
		defer ws.Close()

		password, err := promptPassword("Password")
		if err != nil {
			return err
		}
		confirm, err := (&promptui.Prompt{Label: "Repeat password", Mask: '*'}).Run()
		if err != nil {
			return err
		}
		if confirm != password {
			return fmt.Errorf("passwords do not match")
		}

		u, err := auth.NewUserStore(ws.db).Create(cmd.Context(), args[0], password, role)
		if err != nil {
			return err
		}
		err = audit.NewStore(ws.db).Log(cmd.Context(), audit.Entry{
			ActorType: audit.ActorSystem,
			ActorID:   "cli",
			Action:    audit.ActionUserCreated,
			Summary:   fmt.Sprintf("created %s (%s) from the command line", u.Username, u.Role),
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created %s with role %s\n", u.Username, u.Role)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reg, err := newRegistry()
		if err != nil {
			return err
		}
		ws, err := openWorkspace(cfg, reg)
		if err != nil {
			return err
		}
		defer ws.Close()

		users, err := auth.NewUserStore(ws.db).List(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "USERNAME\tROLE\tCREATED")
		for _, u := range users {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", u.Username, u.Role, u.CreatedAt.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	},
}

// promptPassword asks for a password of at least eight characters.
func promptPassword(label string) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(s string) error {
			if len(s) < 8 {
				return fmt.Errorf("at least 8 characters")
			}
			return nil
		},
	}
	return p.Run()
}

func init() {
	userAddCmd.Flags().StringVar(&userRole, "role", string(auth.RoleEditor), "role: admin, editor or viewer")
	userCmd.AddCommand(userAddCmd, userListCmd)
	rootCmd.AddCommand(userCmd)
}
