package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"github.com/zishu-lab/jobchat"
)

const (
	commandExit  = "/exit"
	commandClear = "/clear"
)

var (
	chatConversationID string
	chatJobFile        string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat about a job posting in the terminal",
	Long: `Start an interactive chat. Replies are printed as they stream in.

Type /clear to start the conversation over and /exit (or Ctrl-D) to quit.`,
	Example: `  $ jobchat chat --job-file job.json
  $ jobchat chat --conversation interview-prep`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatConversationID, "conversation", "", "conversation id (default a new random id)")
	chatCmd.Flags().StringVar(&chatJobFile, "job-file", "", "JSON file with the job posting to discuss")
}

func runChat(cmd *cobra.Command, args []string) error {
	jobContext, err := readJobContext(chatJobFile)
	if err != nil {
		return err
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	id := chatConversationID
	if id == "" {
		id = jobchat.NewConversationID()
	}

	return chatLoop(cmd.Context(), a.Sessions, cmd.InOrStdin(), cmd.OutOrStdout(), id, jobContext)
}

func readJobContext(path string) (interface{}, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}
	var job interface{}
	if err := sonic.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to parse job file %s: %w", path, err)
	}
	return job, nil
}

// chatLoop sends each input line as a message and prints the streamed reply.
func chatLoop(ctx context.Context, sessions *jobchat.SessionManager, in io.Reader, out io.Writer, id string, jobContext interface{}) error {
	fmt.Fprintf(out, "conversation %s\n", id)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case commandExit:
			return nil
		case commandClear:
			if err := sessions.ClearConversation(ctx, id); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			} else {
				fmt.Fprintln(out, "conversation cleared")
			}
			continue
		}

		result := sessions.SendMessage(ctx, line, jobContext, id, func(delta string) {
			fmt.Fprint(out, delta)
		})
		fmt.Fprintln(out)
		if !result.Success {
			fmt.Fprintf(out, "error: %s\n", result.Error)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
