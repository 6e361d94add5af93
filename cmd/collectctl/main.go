package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/collectflow/collectflow/internal/riskengine"
	"github.com/collectflow/collectflow/pkg/cache"
	"github.com/collectflow/collectflow/pkg/config"
	"github.com/collectflow/collectflow/pkg/dispatch"
	"github.com/collectflow/collectflow/pkg/models"
	"github.com/collectflow/collectflow/pkg/store"
)

var version = "dev"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:     "collectctl",
		Short:   "Operator tooling for the collectflow coordinator",
		Version: version,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	rootCmd.AddCommand(submitCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(riskCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

func submitCmd() *cobra.Command {
	var kind, customer, priority string
	var maxAttempts int

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an outreach task to the coordinator",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			gateway := dispatch.NewKafka(dispatch.KafkaConfig{
				Brokers:     cfg.Kafka.Brokers,
				TopicPrefix: cfg.Kafka.TopicPrefix,
				GroupID:     cfg.Kafka.GroupID,
			})
			defer gateway.Close()

			task := &models.Task{
				ID:          uuid.New().String(),
				Kind:        models.TaskKind(kind),
				Priority:    models.Priority(priority),
				CustomerID:  customer,
				MaxAttempts: maxAttempts,
				CreatedAt:   time.Now(),
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := gateway.Submit(ctx, task); err != nil {
				return err
			}

			fmt.Printf("submitted task %s (%s, %s) for customer %s\n", task.ID, kind, task.Priority, customer)
			return nil
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", string(models.TaskSendEmail), "task kind (send_email, make_call, send_sms, research_customer)")
	cmd.Flags().StringVarP(&customer, "customer", "c", "", "customer ID")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "priority (low, medium, high, urgent); derived from risk when empty")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "retry budget (0 uses the coordinator default)")
	cmd.MarkFlagRequired("customer")

	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the coordinator's latest status snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			redisCache, err := cache.NewRedis(ctx, cache.RedisConfig{
				Address:   cfg.Redis.Address,
				Password:  cfg.Redis.Password,
				DB:        cfg.Redis.DB,
				KeyPrefix: cfg.Redis.KeyPrefix,
			})
			if err != nil {
				return err
			}
			defer redisCache.Close()

			raw, err := redisCache.Get(ctx, "coordinator:status")
			if err != nil {
				return err
			}
			if raw == "" {
				return fmt.Errorf("no status snapshot found; is the coordinator running?")
			}

			var status models.CoordinatorStatus
			if err := json.Unmarshal([]byte(raw), &status); err != nil {
				return fmt.Errorf("failed to decode status snapshot: %w", err)
			}

			fmt.Printf("running:      %t (since %s)\n", status.Running, status.StartedAt.Format(time.RFC3339))
			fmt.Printf("agents:       %d (utilization %.0f%%)\n", status.AgentCount, status.Utilization*100)
			fmt.Printf("queue:        %d pending, %d in flight\n", status.QueueSize, status.InFlightTasks)
			fmt.Printf("tasks:        %d assigned, %d completed, %d failed\n",
				status.TasksAssigned, status.TasksCompleted, status.TasksFailed)
			for _, a := range status.Agents {
				fmt.Printf("  %-36s %-8s %-8s %d/%d tasks, %d/%d successful\n",
					a.ID, a.Type, a.Status, a.ActiveTasks, a.Capacity, a.Successful, a.Completed)
			}
			return nil
		},
	}
}

func riskCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "risk [customer-id]",
		Short: "Show the risk assessment for a customer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			pg, err := store.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pg.Close()

			redisCache, err := cache.NewRedis(ctx, cache.RedisConfig{
				Address:   cfg.Redis.Address,
				Password:  cfg.Redis.Password,
				DB:        cfg.Redis.DB,
				KeyPrefix: cfg.Redis.KeyPrefix,
			})
			if err != nil {
				return err
			}
			defer redisCache.Close()

			engine := riskengine.New(riskengine.Config{
				ContextExpiry:       cfg.Risk.ContextExpiry,
				CleanupInterval:     cfg.Risk.CleanupInterval,
				PaymentWindowMonths: cfg.Risk.PaymentWindowMonths,
				ContactWindowMonths: cfg.Risk.ContactWindowMonths,
			}, pg, redisCache, nil, nil)

			cc, err := engine.GetCustomerContext(ctx, args[0], refresh)
			if err != nil {
				return err
			}
			if cc == nil {
				return fmt.Errorf("customer %s not found", args[0])
			}

			fmt.Printf("customer:     %s (%s)\n", cc.Customer.Name, cc.Customer.ID)
			fmt.Printf("risk:         %s (score %.1f)\n", cc.Risk.CurrentRisk, cc.Risk.RiskScore)
			fmt.Printf("prediction:   %.0f%% payment likelihood, %.0f%% escalation, %s, ~%d days\n",
				cc.Risk.Prediction.NextPaymentLikelihood*100,
				cc.Risk.Prediction.EscalationProbability*100,
				cc.Risk.Prediction.CollectionDifficulty,
				cc.Risk.Prediction.EstimatedCollectionDays)

			fmt.Println("factors:")
			for _, f := range cc.Risk.Factors {
				fmt.Printf("  %-20s %5.1f x %.2f  %s\n", f.Name, f.Value, f.Weight, f.Description)
			}
			if len(cc.Risk.Mitigation) > 0 {
				fmt.Println("mitigation:")
				for _, m := range cc.Risk.Mitigation {
					fmt.Printf("  - %s\n", m)
				}
			}
			if len(cc.Recommendations) > 0 {
				fmt.Println("recommendations:")
				for _, r := range cc.Recommendations {
					fmt.Printf("  [%-6s] %-28s %.0f%%  %s\n", r.Priority, r.Action, r.Confidence*100, r.Reason)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "rebuild the context instead of serving cache")
	return cmd
}
