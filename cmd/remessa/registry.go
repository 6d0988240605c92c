package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/csg33k/remessa-generator/internal/domain"
	"github.com/csg33k/remessa-generator/internal/service"
)

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "Manage clients",
}

var clientsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a client",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		f := cmd.Flags()
		c := &domain.Client{Active: true}
		c.Name, _ = f.GetString("name")
		c.BillingCode, _ = f.GetString("billing-code")
		c.AccountCode, _ = f.GetString("account")
		c.BankCode, _ = f.GetString("bank")
		c.TaxDocument, _ = f.GetString("document")
		if inactive, _ := f.GetBool("inactive"); inactive {
			c.Active = false
		}

		if err := service.NewRegistry(a.repo, a.logger).AddClient(cmd.Context(), c); err != nil {
			return err
		}
		fmt.Printf("client %d created\n", c.ID)
		return nil
	},
}

var clientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clients",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		clients, err := service.NewRegistry(a.repo, a.logger).Clients(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tBILLING\tACCOUNT\tACTIVE")
		for _, c := range clients {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%v\n", c.ID, c.Name, c.BillingCode, c.AccountCode, c.Active)
		}
		return w.Flush()
	},
}

var chargesCmd = &cobra.Command{
	Use:   "charges",
	Short: "Manage charges",
}

var chargesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a pending charge",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		f := cmd.Flags()
		clientID, _ := f.GetInt64("client")
		amountStr, _ := f.GetString("amount")
		dueStr, _ := f.GetString("due")
		desc, _ := f.GetString("description")

		amount, err := domain.ParseAmount(amountStr)
		if err != nil {
			return err
		}
		due, err := time.Parse(time.DateOnly, dueStr)
		if err != nil {
			return fmt.Errorf("--due: want YYYY-MM-DD: %w", err)
		}

		c := &domain.Charge{ClientID: clientID, Amount: amount, DueDate: due, Description: desc}
		if err := service.NewRegistry(a.repo, a.logger).AddCharge(cmd.Context(), c); err != nil {
			return err
		}
		fmt.Printf("charge %d created: %s due %s\n", c.ID, c.Amount, c.DueDate.Format(time.DateOnly))
		return nil
	},
}

var chargesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List charges",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		pending, _ := cmd.Flags().GetBool("pending")
		charges, err := service.NewRegistry(a.repo, a.logger).Charges(cmd.Context(), pending)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCLIENT\tDUE\tAMOUNT\tSTATUS\tNSA\tDESCRIPTION")
		var total domain.Cents
		for _, c := range charges {
			nsa := "-"
			if c.Assigned() {
				nsa = fmt.Sprint(c.RemittanceNSA)
			}
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
				c.ID, c.ClientID, c.DueDate.Format(time.DateOnly), c.Amount, c.Status, nsa, c.Description)
			total += c.Amount
		}
		fmt.Fprintf(w, "\t\t\t%s\t%d charge(s)\t\t\n", total, len(charges))
		return w.Flush()
	},
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

var clientsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change a client; only the given flags are applied",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.repo.GetClient(cmd.Context(), id)
		if err != nil {
			return err
		}
		f := cmd.Flags()
		for flag, dst := range map[string]*string{
			"name":         &c.Name,
			"billing-code": &c.BillingCode,
			"account":      &c.AccountCode,
			"bank":         &c.BankCode,
			"document":     &c.TaxDocument,
		} {
			if f.Changed(flag) {
				*dst, _ = f.GetString(flag)
			}
		}
		if f.Changed("active") {
			c.Active, _ = f.GetBool("active")
		}

		if err := service.NewRegistry(a.repo, a.logger).UpdateClient(cmd.Context(), c); err != nil {
			return err
		}
		fmt.Printf("client %d updated\n", c.ID)
		return nil
	},
}

var clientsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a client without charges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := service.NewRegistry(a.repo, a.logger).DeleteClient(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("client %d deleted\n", id)
		return nil
	},
}

var chargesUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change a pending charge; only the given flags are applied",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.repo.GetCharge(cmd.Context(), id)
		if err != nil {
			return err
		}
		f := cmd.Flags()
		if f.Changed("client") {
			c.ClientID, _ = f.GetInt64("client")
		}
		if f.Changed("amount") {
			s, _ := f.GetString("amount")
			if c.Amount, err = domain.ParseAmount(s); err != nil {
				return err
			}
		}
		if f.Changed("due") {
			s, _ := f.GetString("due")
			if c.DueDate, err = time.Parse(time.DateOnly, s); err != nil {
				return fmt.Errorf("--due: want YYYY-MM-DD: %w", err)
			}
		}
		if f.Changed("description") {
			c.Description, _ = f.GetString("description")
		}

		if err := service.NewRegistry(a.repo, a.logger).UpdateCharge(cmd.Context(), c); err != nil {
			return err
		}
		fmt.Printf("charge %d updated: %s due %s\n", c.ID, c.Amount, c.DueDate.Format(time.DateOnly))
		return nil
	},
}

var chargesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a charge not yet remitted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := service.NewRegistry(a.repo, a.logger).DeleteCharge(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("charge %d deleted\n", id)
		return nil
	},
}

func init() {
	f := clientsAddCmd.Flags()
	f.String("name", "", "client name")
	f.String("billing-code", "", "client code at the company (CODIGO_CLIENTE)")
	f.String("account", "", "agency and account (DADOS_BANCARIOS)")
	f.String("bank", "", "COMPE bank code")
	f.String("document", "", "CPF/CNPJ")
	f.Bool("inactive", false, "register as inactive")
	clientsAddCmd.MarkFlagRequired("name")
	clientsAddCmd.MarkFlagRequired("billing-code")
	clientsCmd.AddCommand(clientsAddCmd, clientsListCmd)

	f = clientsUpdateCmd.Flags()
	f.String("name", "", "client name")
	f.String("billing-code", "", "client code at the company (CODIGO_CLIENTE)")
	f.String("account", "", "agency and account (DADOS_BANCARIOS)")
	f.String("bank", "", "COMPE bank code")
	f.String("document", "", "CPF/CNPJ")
	f.Bool("active", true, "active flag; --active=false deactivates")
	clientsCmd.AddCommand(clientsUpdateCmd, clientsDeleteCmd)

	f = chargesAddCmd.Flags()
	f.Int64("client", 0, "client id")
	f.String("amount", "", `amount, e.g. "150.50" or "150,50"`)
	f.String("due", "", "due date YYYY-MM-DD")
	f.String("description", "", "free text")
	chargesAddCmd.MarkFlagRequired("client")
	chargesAddCmd.MarkFlagRequired("amount")
	chargesAddCmd.MarkFlagRequired("due")
	chargesListCmd.Flags().Bool("pending", false, "only charges not yet remitted")
	chargesCmd.AddCommand(chargesAddCmd, chargesListCmd)

	f = chargesUpdateCmd.Flags()
	f.Int64("client", 0, "client id")
	f.String("amount", "", `amount, e.g. "150.50" or "150,50"`)
	f.String("due", "", "due date YYYY-MM-DD")
	f.String("description", "", "free text")
	chargesCmd.AddCommand(chargesUpdateCmd, chargesDeleteCmd)
}
