package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"newsflow/internal/config"
	"newsflow/internal/deliver"
	"newsflow/internal/timeutil"
)

var (
	deliverEmailHTML    string
	deliverEmailText    string
	deliverEmailTo      string
	deliverEmailSubject string

	deliverChatFile   string
	deliverChatTitle  string
	deliverChatID     string
	deliverChatToAll  bool
	deliverChatAsCard bool
)

// deliverEmailCmd sends a previously written HTML digest by e-mail.
var deliverEmailCmd = &cobra.Command{
	Use:   "deliver-email",
	Short: "Send a rendered digest through the mail API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		if deliverEmailHTML == "" || deliverEmailTo == "" {
			return fmt.Errorf("--html and --to are required")
		}

		html, err := os.ReadFile(deliverEmailHTML)
		if err != nil {
			return fmt.Errorf("failed to read html body: %w", err)
		}
		text := ""
		if deliverEmailText != "" {
			raw, err := os.ReadFile(deliverEmailText)
			if err != nil {
				return fmt.Errorf("failed to read text body: %w", err)
			}
			text = string(raw)
		}

		sender, err := deliver.NewEmailSender(deliver.EmailConfig{
			APIBase:         cfg.Mail.APIBase,
			APIKey:          cfg.Mail.APIKey,
			From:            cfg.Mail.From,
			ListUnsubscribe: cfg.Mail.ListUnsubscribe,
			Timeout:         config.Duration(cfg.Mail.Timeout, 30*time.Second),
		})
		if err != nil {
			return err
		}

		loc := timeutil.LoadLocation(cfg.Runner.TZ)
		subject := timeutil.RenderSubject(deliverEmailSubject, time.Now(), loc)

		id, err := sender.Send(cmd.Context(), deliverEmailTo, subject, string(html), text)
		if err != nil {
			return err
		}
		fmt.Printf("sent to %s (transmission %s)\n", deliverEmailTo, id)
		return nil
	},
}

// deliverChatCmd pushes a markdown digest into a group chat.
var deliverChatCmd = &cobra.Command{
	Use:   "deliver-chat",
	Short: "Send a rendered digest through the chat API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		if deliverChatFile == "" {
			return fmt.Errorf("--file is required")
		}

		body, err := os.ReadFile(deliverChatFile)
		if err != nil {
			return fmt.Errorf("failed to read message body: %w", err)
		}

		sender, err := deliver.NewChatSender(deliver.ChatConfig{
			APIBase:   cfg.Chat.APIBase,
			AppID:     cfg.Chat.AppID,
			AppSecret: cfg.Chat.AppSecret,
			Timeout:   config.Duration(cfg.Chat.Timeout, 15*time.Second),
		})
		if err != nil {
			return err
		}

		loc := timeutil.LoadLocation(cfg.Runner.TZ)
		title := timeutil.RenderSubject(deliverChatTitle, time.Now(), loc)

		if deliverChatToAll {
			sent, errs := sender.Broadcast(cmd.Context(), title, string(body), deliverChatAsCard)
			for _, err := range errs {
				fmt.Printf("Warning: %v\n", err)
			}
			if sent == 0 {
				return fmt.Errorf("broadcast reached no chats")
			}
			fmt.Printf("sent to %d chats\n", sent)
			return nil
		}

		chatID := deliverChatID
		if chatID == "" {
			chatID = cfg.Chat.DefaultChatID
		}
		if chatID == "" {
			return fmt.Errorf("--chat-id or CHAT_DEFAULT_CHAT_ID is required")
		}
		if err := sender.SendMarkdown(cmd.Context(), chatID, title, string(body), deliverChatAsCard); err != nil {
			return err
		}
		fmt.Printf("sent to chat %s\n", chatID)
		return nil
	},
}

func init() {
	deliverEmailCmd.Flags().StringVar(&deliverEmailHTML, "html", "", "Path to the HTML body")
	deliverEmailCmd.Flags().StringVar(&deliverEmailText, "text", "", "Path to the plain-text alternative")
	deliverEmailCmd.Flags().StringVar(&deliverEmailTo, "to", "", "Recipient address")
	deliverEmailCmd.Flags().StringVar(&deliverEmailSubject, "subject", "${date_zh} 新闻摘要", "Subject template")
	rootCmd.AddCommand(deliverEmailCmd)

	deliverChatCmd.Flags().StringVar(&deliverChatFile, "file", "", "Path to the markdown body")
	deliverChatCmd.Flags().StringVar(&deliverChatTitle, "title", "${date_zh} 新闻快讯", "Card title template")
	deliverChatCmd.Flags().StringVar(&deliverChatID, "chat-id", "", "Target chat id")
	deliverChatCmd.Flags().BoolVar(&deliverChatToAll, "to-all", false, "Broadcast to every visible chat")
	deliverChatCmd.Flags().BoolVar(&deliverChatAsCard, "as-card", false, "Send as an interactive card")
	rootCmd.AddCommand(deliverChatCmd)
}
