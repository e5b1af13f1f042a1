package auth

import (
	"context"
	"fmt"
	"strings"
)

const (
	CommandStats     = "/stats"
	CommandPromote   = "/promote"
	CommandDemote    = "/demote"
	CommandBan       = "/ban"
	CommandUnban     = "/unban"
	CommandBroadcast = "/broadcast"
)

// AvailableCommands lists the recognized commands in display order
func AvailableCommands() []string {
	return []string{
		CommandStats,
		CommandPromote,
		CommandDemote,
		CommandBan,
		CommandUnban,
		CommandBroadcast,
	}
}

// CommandResult is the outcome of a console command.
// Only the fields relevant to the command are set.
type CommandResult struct {
	Command      string        `json:"command"`
	Message      string        `json:"message"`
	Account      *Account      `json:"user,omitempty"`
	Stats        *SiteStats    `json:"stats,omitempty"`
	Announcement *Announcement `json:"announcement,omitempty"`
}

// CommandInterpreter parses one line of console input into an admin operation
type CommandInterpreter struct {
	admin    *AdminService
	recorder activityRecorder
	logger   Logger
}

// CommandInterpreterOption customizes the interpreter
type CommandInterpreterOption func(*CommandInterpreter)

// WithCommandActivitySink records every executed command
func WithCommandActivitySink(sink ActivitySink) CommandInterpreterOption {
	return func(ci *CommandInterpreter) {
		ci.recorder.sink = normalizeActivitySink(sink)
	}
}

func WithCommandLogger(logger Logger) CommandInterpreterOption {
	return func(ci *CommandInterpreter) {
		_, ci.logger = ResolveLogger("auth.command", nil, logger)
		ci.recorder.logger = ci.logger
	}
}

// NewCommandInterpreter builds an interpreter on top of admin
func NewCommandInterpreter(admin *AdminService, opts ...CommandInterpreterOption) *CommandInterpreter {
	_, logger := ResolveLogger("auth.command", nil, nil)
	ci := &CommandInterpreter{
		admin:    admin,
		logger:   logger,
		recorder: newActivityRecorder(nil, logger, admin.now),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ci)
		}
	}

	return ci
}

type commandFunc func(ctx context.Context, actor *Account, args []string) (*CommandResult, error)

// Execute runs line on behalf of actor. The command name is case-insensitive,
// arguments are whitespace separated and a leading @ on usernames is dropped.
func (ci *CommandInterpreter) Execute(ctx context.Context, actor *Account, line string) (*CommandResult, error) {
	if err := AdminTier().Authorize(actor); err != nil {
		return nil, err
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, invalidArgument("command is required", nil)
	}

	name := strings.ToLower(fields[0])
	args := fields[1:]

	handler, ok := ci.handlers()[name]
	if !ok {
		return nil, unknownCommand("unknown command", map[string]any{"command": fields[0]})
	}

	result, err := handler(ctx, actor, args)
	if err != nil {
		ci.logger.Debug("command failed", "command", name, "error", err)
		return nil, err
	}
	result.Command = name

	ci.recorder.record(ctx, ActivityEvent{
		EventType: ActivityEventAdminCommand,
		Actor:     ActorFromAccount(actor),
		AccountID: accountIDOf(result.Account),
		Metadata: map[string]any{
			"command": name,
			"args":    args,
		},
	})

	return result, nil
}

func (ci *CommandInterpreter) handlers() map[string]commandFunc {
	return map[string]commandFunc{
		CommandStats:     ci.stats,
		CommandPromote:   ci.promote,
		CommandDemote:    ci.demote,
		CommandBan:       ci.ban,
		CommandUnban:     ci.unban,
		CommandBroadcast: ci.broadcast,
	}
}

func (ci *CommandInterpreter) stats(ctx context.Context, actor *Account, _ []string) (*CommandResult, error) {
	stats, err := ci.admin.Stats(ctx, actor)
	if err != nil {
		return nil, err
	}
	return &CommandResult{Message: "Site statistics", Stats: stats}, nil
}

func (ci *CommandInterpreter) promote(ctx context.Context, actor *Account, args []string) (*CommandResult, error) {
	if len(args) < 2 {
		return nil, usage("Usage: /promote @username " + assignableUsage())
	}

	username := NormalizeUsername(args[0])
	account, err := ci.admin.Promote(ctx, actor, username, args[1])
	if err != nil {
		return nil, err
	}

	return &CommandResult{
		Message: fmt.Sprintf("Promoted @%s to %s", username, account.Role),
		Account: account,
	}, nil
}

func (ci *CommandInterpreter) demote(ctx context.Context, actor *Account, args []string) (*CommandResult, error) {
	if len(args) < 1 {
		return nil, usage("Usage: /demote @username")
	}

	username := NormalizeUsername(args[0])
	account, err := ci.admin.Demote(ctx, actor, username)
	if err != nil {
		return nil, err
	}

	return &CommandResult{
		Message: fmt.Sprintf("Demoted @%s to %s", username, account.Role),
		Account: account,
	}, nil
}

func (ci *CommandInterpreter) ban(ctx context.Context, actor *Account, args []string) (*CommandResult, error) {
	if len(args) < 1 {
		return nil, usage("Usage: /ban @username")
	}

	username := NormalizeUsername(args[0])
	account, err := ci.admin.Ban(ctx, actor, username)
	if err != nil {
		return nil, err
	}

	return &CommandResult{
		Message: fmt.Sprintf("Banned @%s", username),
		Account: account,
	}, nil
}

func (ci *CommandInterpreter) unban(ctx context.Context, actor *Account, args []string) (*CommandResult, error) {
	if len(args) < 1 {
		return nil, usage("Usage: /unban @username")
	}

	username := NormalizeUsername(args[0])
	account, err := ci.admin.Unban(ctx, actor, username)
	if err != nil {
		return nil, err
	}

	return &CommandResult{
		Message: fmt.Sprintf("Unbanned @%s", username),
		Account: account,
	}, nil
}

func (ci *CommandInterpreter) broadcast(ctx context.Context, actor *Account, args []string) (*CommandResult, error) {
	message := strings.Join(args, " ")
	if message == "" {
		return nil, usage("Usage: /broadcast <message>")
	}

	record, err := ci.admin.Broadcast(ctx, actor, BroadcastRequest{
		Title:   DefaultAnnouncementTitle,
		Content: message,
	})
	if err != nil {
		return nil, err
	}

	return &CommandResult{
		Message:      "Broadcast sent successfully",
		Announcement: record,
	}, nil
}

func usage(message string) error {
	return invalidArgument(message, map[string]any{
		"available_commands": AvailableCommands(),
	})
}

func unknownCommand(message string, metadata map[string]any) error {
	md := map[string]any{"available_commands": AvailableCommands()}
	for k, v := range metadata {
		md[k] = v
	}
	clone := withMetadata(ErrUnknownCommand, md)
	clone.Message = message
	return clone
}

func assignableUsage() string {
	roles := AssignableRoles()
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		if role == RoleFree {
			continue
		}
		names = append(names, role.String())
	}
	return strings.Join(names, "|")
}

func accountIDOf(account *Account) int64 {
	if account == nil {
		return 0
	}
	return account.ID
}
