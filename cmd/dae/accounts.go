package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"doandearn/internal/domain"
	"doandearn/internal/engine"
	"doandearn/internal/repo"
)

func userCmd() *cobra.Command {
	u := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
		Long:  "Accounts are keyed by email. Buyers and workers receive signup coins when registered; admins are promoted with 'dae user role'.",
	}
	u.AddCommand(userRegisterCmd())
	u.AddCommand(userListCmd())
	u.AddCommand(userShowCmd())
	u.AddCommand(userRoleCmd())
	u.AddCommand(userDeleteCmd())
	return u
}

func userRegisterCmd() *cobra.Command {
	var opts engine.RegisterOptions
	cmd := &cobra.Command{
		Use:   "register <email>",
		Short: "Register a buyer or worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Email = args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, created, err := e.RegisterAccount(ctx, opts)
				if err != nil {
					return err
				}
				if !created && !viper.GetBool("json") {
					fmt.Println("account already exists")
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.PhotoURL, "photo-url", "", "photo url")
	cmd.Flags().StringVar(&opts.Role, "role", domain.RoleWorker, "buyer or worker")
	return cmd
}

func userListCmd() *cobra.Command {
	var role string
	var top int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var (
					items []domain.UserAccount
					err   error
				)
				if top > 0 {
					items, err = e.TopWorkers(ctx, top)
				} else {
					items, err = e.ListAccounts(ctx, role)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				rows := make([]table.Row, 0, len(items))
				for _, u := range items {
					rows = append(rows, table.Row{u.Email, u.Name, u.Role, u.AvailableCoin, u.CreatedAt})
				}
				renderTable(table.Row{"Email", "Name", "Role", "Coins", "Created"}, rows)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role filter")
	cmd.Flags().IntVar(&top, "top", 0, "show the top n workers by balance")
	return cmd
}

func userShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <email>",
		Short: "Show an account and its balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.GetAccount(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
}

func userRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "role <email> <buyer|worker|admin>",
		Short: "Change an account's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.SetRole(ctx, args[0], args[1], actorOr("cli"))
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
}

func userDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <email>",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteAccount(ctx, args[0], actorOr("cli")); err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"deleted": args[0]})
			})
		},
	}
}

func apikeyCmd() *cobra.Command {
	k := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
		Long:  "API keys authenticate requests with the X-Api-Key header as the account they belong to. Only the hash is stored; the key is printed once.",
	}
	k.AddCommand(apikeyCreateCmd())
	k.AddCommand(apikeyListCmd())
	k.AddCommand(apikeyDeleteCmd())
	return k
}

func apikeyCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create <email>",
		Short: "Create an API key for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.GetAccount(ctx, args[0])
				if err != nil {
					return err
				}
				secret, err := generateKey()
				if err != nil {
					return err
				}
				key := domain.APIKey{
					ID:        uuid.NewString(),
					Email:     u.Email,
					Name:      name,
					KeyHash:   repo.HashAPIKey(secret),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := e.Repo.InsertAPIKey(ctx, nil, key); err != nil {
					return err
				}
				return printJSONOrTable(map[string]string{"id": key.ID, "email": key.Email, "key": secret})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "label for the key")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				keys, err := e.Repo.ListAPIKeys(ctx, email)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				rows := make([]table.Row, 0, len(keys))
				for _, k := range keys {
					rows = append(rows, table.Row{k.ID, k.Email, k.Name, k.CreatedAt})
				}
				renderTable(table.Row{"ID", "Email", "Name", "Created"}, rows)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "owner filter")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.Repo.DeleteAPIKey(ctx, args[0]); err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"deleted": args[0]})
			})
		},
	}
}

func generateKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "dae_" + hex.EncodeToString(buf), nil
}

func paymentCmd() *cobra.Command {
	p := &cobra.Command{Use: "payment", Short: "Record and list coin purchases"}
	p.AddCommand(paymentRecordCmd())
	p.AddCommand(paymentListCmd())
	return p
}

func paymentRecordCmd() *cobra.Command {
	var opts engine.PaymentOptions
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a confirmed payment and credit its coins",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := actor()
			if err != nil {
				return err
			}
			opts.Email = email
			opts.Actor = email
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.RecordPayment(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Price, "price", "", "amount paid as a decimal")
	cmd.Flags().Int64Var(&opts.Coins, "coins", 0, "coins purchased")
	cmd.Flags().StringVar(&opts.TransactionID, "transaction-id", "", "payment processor transaction id")
	return cmd
}

func paymentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List payments of the --as account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := actor()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListPayments(ctx, email)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				rows := make([]table.Row, 0, len(items))
				for _, p := range items {
					rows = append(rows, table.Row{p.ID, p.TransactionID, p.Price.StringFixed(2), p.Coins, p.CreatedAt})
				}
				renderTable(table.Row{"ID", "Transaction", "Price", "Coins", "Created"}, rows)
				return nil
			})
		},
	}
}

func statsCmd() *cobra.Command {
	s := &cobra.Command{Use: "stats", Short: "Dashboard totals"}
	s.AddCommand(&cobra.Command{
		Use:   "admin",
		Short: "Marketplace totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				st, err := e.AdminStats(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(st)
			})
		},
	})
	s.AddCommand(&cobra.Command{
		Use:   "worker",
		Short: "Submission and earning totals of the --as worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := actor()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				st, err := e.WorkerStats(ctx, email)
				if err != nil {
					return err
				}
				return printJSONOrTable(st)
			})
		},
	})
	s.AddCommand(&cobra.Command{
		Use:   "buyer",
		Short: "Task and payment totals of the --as buyer",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := actor()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				st, err := e.BuyerStats(ctx, email)
				if err != nil {
					return err
				}
				return printJSONOrTable(st)
			})
		},
	})
	return s
}
