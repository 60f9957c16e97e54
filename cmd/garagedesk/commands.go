package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-garage-desk/auth"
	"github.com/jrsteele09/go-garage-desk/catalog"
	"github.com/jrsteele09/go-garage-desk/internal/config"
	"github.com/jrsteele09/go-garage-desk/internal/utils"
	"github.com/jrsteele09/go-garage-desk/query"
	"github.com/jrsteele09/go-garage-desk/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

type configLoader func(envFile string) (config.Config, error)

type credentials struct {
	email    string
	password string
}

func (c *credentials) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.email, "email", "", "Account email")
	cmd.Flags().StringVar(&c.password, "password", "", "Account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
}

func newRootCmd(load configLoader, out io.Writer) *cobra.Command {
	var (
		envFile  string
		noBanner bool
		stats    bool
		a        *app
	)
	registry := prometheus.NewRegistry()

	root := &cobra.Command{
		Use:           "garagedesk",
		Short:         "Vehicle service desk backend client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(envFile)
			if err != nil {
				return err
			}
			if !noBanner {
				displayAppname(cfg.GetAppName())
			}
			a, err = newApp(cfg, registry)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close(cmd.Context())
			if stats {
				printStats(cmd.OutOrStdout(), registry)
			}
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before the environment")
	root.PersistentFlags().BoolVar(&noBanner, "no-banner", false, "Skip the startup banner")
	root.PersistentFlags().BoolVar(&stats, "stats", false, "Print backend request counts on exit")

	// Subcommands resolve the app lazily: it is built in PersistentPreRunE.
	current := func() *app { return a }
	root.AddCommand(
		signUpCmd(current),
		signInCmd(current),
		countCmd(current),
		vehiclesCmd(current),
		catalogCmd(current),
	)
	return root
}

func signUpCmd(current func() *app) *cobra.Command {
	var (
		creds    credentials
		fullName string
		role     string
		shop     string
	)
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and its application identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := auth.SignUpRequest{
				Email:    creds.email,
				Password: creds.password,
				FullName: fullName,
				Role:     session.Role(role),
			}
			if shop != "" {
				id, err := uuid.Parse(shop)
				if err != nil {
					return fmt.Errorf("--shop: %w", err)
				}
				req.ShopID = utils.UUIDPtr(id)
			}
			s, err := current().manager.SignUp(cmd.Context(), req)
			if err != nil {
				return err
			}
			printIdentity(cmd.OutOrStdout(), s.Identity)
			return nil
		},
	}
	creds.bind(cmd)
	cmd.Flags().StringVar(&fullName, "name", "", "Full name")
	cmd.Flags().StringVar(&role, "role", string(session.RoleClient), "client, mechanic or admin")
	cmd.Flags().StringVar(&shop, "shop", "", "Shop id for mechanics and admins")
	return cmd
}

func signInCmd(current func() *app) *cobra.Command {
	var creds credentials
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in and show the resolved identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := current().manager.SignIn(cmd.Context(), creds.email, creds.password)
			if err != nil {
				return err
			}
			printIdentity(cmd.OutOrStdout(), s.Identity)
			fmt.Fprintf(cmd.OutOrStdout(), "session expires %s\n", s.ExpiresAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
	creds.bind(cmd)
	return cmd
}

func countCmd(current func() *app) *cobra.Command {
	var where []string
	cmd := &cobra.Command{
		Use:   "count <resource>",
		Short: "Count the records of a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := query.New()
			for _, w := range where {
				column, value, ok := strings.Cut(w, "=")
				if !ok {
					return fmt.Errorf("--where %q: expected column=value", w)
				}
				q = q.Where(query.Equal(column, value))
			}
			n, err := current().client.Count(cmd.Context(), args[0], q)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", args[0], n)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&where, "where", nil, "Equality filter column=value, repeatable")
	return cmd
}

func vehiclesCmd(current func() *app) *cobra.Command {
	var creds credentials
	cmd := &cobra.Command{
		Use:   "vehicles",
		Short: "List the signed-in client's vehicles",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			s, err := a.manager.SignIn(cmd.Context(), creds.email, creds.password)
			if err != nil {
				return err
			}
			list, err := a.vehicles.ListByClient(cmd.Context(), s.Identity.ID)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no vehicles")
			}
			for _, v := range list {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", v.LicensePlate, v.Description())
			}
			return nil
		},
	}
	creds.bind(cmd)
	return cmd
}

func catalogCmd(current func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse the service catalog",
	}

	var (
		byPrice bool
		desc    bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List services by name or price",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo := current().catalog
			var (
				services []catalog.Service
				err      error
			)
			switch {
			case byPrice && desc:
				services, err = repo.ListOrderedByPrice(ctx, query.Descending)
			case byPrice:
				services, err = repo.ListOrderedByPrice(ctx, query.Ascending)
			default:
				services, err = repo.ListOrderedByName(ctx)
			}
			if err != nil {
				return err
			}
			printServices(cmd.OutOrStdout(), services)
			return nil
		},
	}
	list.Flags().BoolVar(&byPrice, "by-price", false, "Order by base price")
	list.Flags().BoolVar(&desc, "desc", false, "Most expensive first (with --by-price)")

	search := &cobra.Command{
		Use:   "search <term>",
		Short: "Search services by name and description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := current().catalog.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printServices(cmd.OutOrStdout(), services)
			return nil
		},
	}

	cmd.AddCommand(list, search)
	return cmd
}

func printIdentity(w io.Writer, identity *session.Identity) {
	if identity == nil {
		return
	}
	fmt.Fprintf(w, "%s <%s> role=%s", identity.FullName, identity.Email, identity.Role)
	if identity.HasShop() {
		fmt.Fprintf(w, " shop=%s", utils.Value(identity.ShopID))
	}
	fmt.Fprintln(w)
}

func printServices(w io.Writer, services []catalog.Service) {
	if len(services) == 0 {
		fmt.Fprintln(w, "no services")
		return
	}
	for _, s := range services {
		fmt.Fprintf(w, "%-24s %8.2f  %s\n", s.Name, s.BasePrice, s.Description)
	}
}

func printStats(w io.Writer, reg prometheus.Gatherer) {
	families, err := reg.Gather()
	if err != nil {
		fmt.Fprintf(w, "stats unavailable: %v\n", err)
		return
	}
	for _, mf := range families {
		if !strings.HasSuffix(mf.GetName(), "_requests_total") {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			fmt.Fprintf(w, "%s %.0f\n", strings.Join(labels, " "), m.GetCounter().GetValue())
		}
	}
}
