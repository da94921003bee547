package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"doandearn/internal/domain"
	"doandearn/internal/engine"
)

func taskCmd() *cobra.Command {
	t := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Tasks are posted by buyers. required_workers counts the remaining slots; claiming takes one and a rejected submission gives it back.",
	}
	t.AddCommand(taskCreateCmd())
	t.AddCommand(taskListCmd())
	t.AddCommand(taskShowCmd())
	t.AddCommand(taskEditCmd())
	t.AddCommand(taskDeleteCmd())
	t.AddCommand(taskClaimCmd())
	return t
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Post a task as the --as buyer",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := actor()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				buyer, err := e.GetAccount(ctx, email)
				if err != nil {
					return err
				}
				opts.BuyerEmail = buyer.Email
				if opts.BuyerName == "" {
					opts.BuyerName = buyer.Name
				}
				task, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(task)
			})
		},
	}
	cmd.Flags().StringVar(&opts.TaskTitle, "title", "", "task title")
	cmd.Flags().StringVar(&opts.TaskDetail, "detail", "", "task detail")
	cmd.Flags().StringVar(&opts.SubmissionInfo, "submission-info", "", "what workers must submit")
	cmd.Flags().StringVar(&opts.TaskImageURL, "image-url", "", "task image url")
	cmd.Flags().Int64Var(&opts.PayableAmount, "payable", 0, "coins paid per approved submission")
	cmd.Flags().Int64Var(&opts.RequiredWorkers, "workers", 1, "number of worker slots")
	cmd.Flags().StringVar(&opts.CompletionDate, "completion-date", "", "completion date")
	cmd.Flags().StringVar(&opts.BuyerName, "buyer-name", "", "buyer display name (default from account)")
	return cmd
}

func taskListCmd() *cobra.Command {
	var all, mine bool
	var popular int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List open tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var (
					items []domain.Task
					err   error
				)
				switch {
				case mine:
					email, aerr := actor()
					if aerr != nil {
						return aerr
					}
					items, err = e.ListTasksByBuyer(ctx, email)
				case popular > 0:
					items, err = e.ListPopularTasks(ctx, popular)
				case all:
					items, err = e.ListAllTasks(ctx)
				default:
					items, err = e.ListOpenTasks(ctx)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				rows := make([]table.Row, 0, len(items))
				for _, t := range items {
					rows = append(rows, table.Row{t.ID, t.TaskTitle, t.BuyerEmail, t.PayableAmount, t.RequiredWorkers, t.CompletionDate})
				}
				renderTable(table.Row{"ID", "Title", "Buyer", "Payable", "Slots", "Completion"}, rows)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include tasks without free slots")
	cmd.Flags().BoolVar(&mine, "mine", false, "tasks posted by the --as buyer")
	cmd.Flags().IntVar(&popular, "popular", 0, "show the n best-paying tasks")
	return cmd
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func taskEditCmd() *cobra.Command {
	var title, detail, info string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a task's title, detail or submission info",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.TaskEditOptions{ID: args[0], Actor: actorOr("cli")}
			if cmd.Flags().Changed("title") {
				opts.TaskTitle = &title
			}
			if cmd.Flags().Changed("detail") {
				opts.TaskDetail = &detail
			}
			if cmd.Flags().Changed("submission-info") {
				opts.SubmissionInfo = &info
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.EditTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&detail, "detail", "", "task detail")
	cmd.Flags().StringVar(&info, "submission-info", "", "submission info")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteTask(ctx, args[0], actorOr("cli")); err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"deleted": args[0]})
			})
		},
	}
}

func taskClaimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim <id>",
		Short: "Take one worker slot of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := actor()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.ClaimSlot(ctx, args[0], email)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func submissionCmd() *cobra.Command {
	s := &cobra.Command{
		Use:   "submission",
		Short: "Submit and review work",
		Long:  "Approving a submission credits the worker the task's payable amount; rejecting it restores a slot on the task. Both happen once per submission.",
	}
	s.AddCommand(submissionSubmitCmd())
	s.AddCommand(submissionApproveCmd())
	s.AddCommand(submissionRejectCmd())
	s.AddCommand(submissionListCmd())
	s.AddCommand(submissionPendingCmd())
	return s
}

func submissionSubmitCmd() *cobra.Command {
	var details string
	cmd := &cobra.Command{
		Use:   "submit <task-id>",
		Short: "Submit work for a task as the --as worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := actor()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				worker, err := e.GetAccount(ctx, email)
				if err != nil {
					return err
				}
				s, err := e.Submit(ctx, engine.SubmitOptions{
					TaskID:            args[0],
					WorkerEmail:       worker.Email,
					WorkerName:        worker.Name,
					SubmissionDetails: details,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&details, "details", "", "proof of work")
	return cmd
}

func submissionApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a submission and credit the worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.Approve(ctx, args[0], actorOr("cli"))
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
}

func submissionRejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a submission and restore the task slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.Reject(ctx, args[0], actorOr("cli"))
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
}

func submissionListCmd() *cobra.Command {
	var page, limit int
	var approved bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List submissions of the --as worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := actor()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var items []domain.Submission
				var total int64
				if approved {
					items, err = e.ListApprovedByWorker(ctx, email)
					total = int64(len(items))
				} else {
					var p domain.SubmissionPage
					p, err = e.ListByWorker(ctx, email, page, limit)
					items, total = p.Submissions, p.TotalSubmissions
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(domain.SubmissionPage{Submissions: items, TotalSubmissions: total})
				}
				printSubmissions(items)
				fmt.Printf("%d shown, %d total\n", len(items), total)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (default from config)")
	cmd.Flags().BoolVar(&approved, "approved", false, "only approved submissions")
	return cmd
}

func submissionPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Pending submissions on the --as buyer's tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := actor()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListPendingByBuyer(ctx, email)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				printSubmissions(items)
				return nil
			})
		},
	}
}

func printSubmissions(items []domain.Submission) {
	rows := make([]table.Row, 0, len(items))
	for _, s := range items {
		rows = append(rows, table.Row{s.ID, s.TaskTitle, s.WorkerEmail, s.PayableAmount, s.Status, s.CreatedAt})
	}
	renderTable(table.Row{"ID", "Task", "Worker", "Payable", "Status", "Created"}, rows)
}

func withdrawalCmd() *cobra.Command {
	w := &cobra.Command{
		Use:   "withdrawal",
		Short: "Request and finalize payouts",
		Long:  "Workers request withdrawals without touching their balance. Finalizing checks and debits the balance in the same transaction.",
	}
	w.AddCommand(withdrawalRequestCmd())
	w.AddCommand(withdrawalFinalizeCmd())
	w.AddCommand(withdrawalPendingCmd())
	return w
}

func withdrawalRequestCmd() *cobra.Command {
	var opts engine.WithdrawalRequestOptions
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Request a payout as the --as worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := actor()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				worker, err := e.GetAccount(ctx, email)
				if err != nil {
					return err
				}
				opts.WorkerEmail = worker.Email
				opts.WorkerName = worker.Name
				w, err := e.RequestWithdrawal(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	cmd.Flags().Int64Var(&opts.WithdrawalCoin, "coins", 0, "coins to withdraw")
	cmd.Flags().StringVar(&opts.WithdrawalAmount, "amount", "", "payout amount as a decimal")
	cmd.Flags().StringVar(&opts.PaymentSystem, "payment-system", "", "payout channel")
	cmd.Flags().StringVar(&opts.AccountNumber, "account-number", "", "payout account")
	return cmd
}

func withdrawalFinalizeCmd() *cobra.Command {
	var opts engine.FinalizeOptions
	cmd := &cobra.Command{
		Use:   "finalize <id>",
		Short: "Finalize a withdrawal and debit the worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ID = args[0]
			opts.Actor = actorOr("cli")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				w, err := e.Finalize(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Status, "status", domain.WithdrawalApproved, "approved or completed")
	cmd.Flags().Int64Var(&opts.Amount, "coins", 0, "expected withdrawal coins (checked against the record when set)")
	cmd.Flags().StringVar(&opts.WorkerEmail, "worker", "", "expected worker email (checked against the record when set)")
	return cmd
}

func withdrawalPendingCmd() *cobra.Command {
	var mine bool
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List pending withdrawals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var (
					items []domain.Withdrawal
					err   error
				)
				if mine {
					email, aerr := actor()
					if aerr != nil {
						return aerr
					}
					items, err = e.ListWithdrawalsByWorker(ctx, email)
				} else {
					items, err = e.ListPendingWithdrawals(ctx)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				rows := make([]table.Row, 0, len(items))
				for _, w := range items {
					rows = append(rows, table.Row{w.ID, w.WorkerEmail, w.WithdrawalCoin, w.WithdrawalAmount, w.PaymentSystem, w.Status, w.CreatedAt})
				}
				renderTable(table.Row{"ID", "Worker", "Coins", "Amount", "System", "Status", "Created"}, rows)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&mine, "mine", false, "all withdrawals of the --as worker")
	return cmd
}
