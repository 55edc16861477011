package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/sguter90/watermaestro/pkg/models"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "User management commands",
	Long:  `Commands for listing, adding and removing dashboard users.`,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	Long:  `Display all users with their latest readings. Prints JSON when stdout is not a terminal.`,
	Args:  cobra.NoArgs,
	RunE:  runUserList,
}

var userAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a new user",
	Long:  `Add a user with a freshly generated history for every parameter.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runUserAdd,
}

var userRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserRemove,
}

var userListJSON bool

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userRemoveCmd)

	userListCmd.Flags().BoolVar(&userListJSON, "json", false, "always print JSON")
}

func runUserList(cmd *cobra.Command, args []string) error {
	svc, err := servicesFromContext(cmd.Context())
	if err != nil {
		return err
	}

	profiles, err := svc.Registry.LoadAll(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}

	summaries := make([]models.UserSummary, len(profiles))
	for i, p := range profiles {
		summaries[i] = p.Summary()
	}

	out := cmd.OutOrStdout()
	if userListJSON || !isTerminal(out) {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}

	printUserTable(out, summaries)
	return nil
}

func printUserTable(out io.Writer, summaries []models.UserSummary) {
	if len(summaries) == 0 {
		fmt.Fprintln(out, "No users found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	header := []string{"ID", "NAME", "UPDATED"}
	for _, p := range models.Parameters {
		info, _ := p.Info()
		header = append(header, strings.ToUpper(info.Name))
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))

	for _, s := range summaries {
		updated := "-"
		if s.LastUpdate != nil {
			updated = s.LastUpdate.Local().Format("2006-01-02 15:04")
		}

		row := []string{s.ID, s.Name, updated}
		for _, p := range models.Parameters {
			if v, ok := s.LatestValue[p]; ok {
				row = append(row, formatReading(p, v))
			} else {
				row = append(row, "-")
			}
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	svc, err := servicesFromContext(cmd.Context())
	if err != nil {
		return err
	}

	profile, err := svc.Registry.AddUser(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("failed to add user: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "User added successfully!\n")
	fmt.Fprintf(out, "ID: %s\n", profile.ID)
	fmt.Fprintf(out, "Name: %s\n", profile.Name)
	return nil
}

func runUserRemove(cmd *cobra.Command, args []string) error {
	svc, err := servicesFromContext(cmd.Context())
	if err != nil {
		return err
	}

	removed, err := svc.Registry.RemoveUser(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to remove user: %w", err)
	}
	if !removed {
		return fmt.Errorf("user not found: %s", args[0])
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ User %s removed\n", args[0])
	return nil
}

func formatReading(p models.Parameter, v float64) string {
	info, _ := p.Info()
	if info.Precision == models.PrecisionOneDecimal {
		return fmt.Sprintf("%.1f", v)
	}
	return fmt.Sprintf("%.0f", v)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
