package assistant

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/shop-assistant/internal/model"
)

// Slash commands handled before intent classification.
const (
	CmdDebug       = "/debug"
	CmdTestAPI     = "/test-api"
	CmdTestBackend = "/test-backend"
	CmdLogin       = "/login"
	CmdLogout      = "/logout"
	CmdNew         = "/new"
	CmdHelp        = "/help"
)

var commands = map[string]bool{
	CmdDebug:       true,
	CmdTestAPI:     true,
	CmdTestBackend: true,
	CmdLogin:       true,
	CmdLogout:      true,
	CmdNew:         true,
	CmdHelp:        true,
}

// parseCommand splits a known slash command from its arguments. Unknown
// slash words are ordinary text.
func parseCommand(text string) (cmd string, args []string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text)
	cmd = strings.ToLower(fields[0])
	if !commands[cmd] {
		return "", nil, false
	}
	return cmd, fields[1:], true
}

// runCommand appends the command's single reply. The command text itself is
// not recorded; self-tests show the typing indicator while they probe.
func (a *Assistant) runCommand(ctx context.Context, turn *Turn, cmd string, args []string) error {
	a.logger.Info("slash command", zap.String("command", cmd))

	var reply string
	switch cmd {
	case CmdDebug:
		on := !a.debug.Load()
		a.debug.Store(on)
		reply = MsgDebugOff
		if on {
			reply = MsgDebugOn
		}

	case CmdTestAPI:
		a.setTyping(true)
		err := a.completion.TestConnection(ctx)
		a.setTyping(false)
		reply = fmt.Sprintf(MsgAPIOK, a.opts.ProviderName)
		if err != nil {
			reply = fmt.Sprintf(MsgAPIFailed, a.opts.ProviderName, err)
		}

	case CmdTestBackend:
		a.setTyping(true)
		resp, err := a.shop.Search(ctx, "test")
		a.setTyping(false)
		switch {
		case err != nil:
			reply = fmt.Sprintf(MsgBackendFailed, err)
		case resp == nil:
			reply = MsgBackendNoData
		default:
			reply = MsgBackendOK
		}

	case CmdLogin:
		reply = a.login(ctx, args)

	case CmdLogout:
		reply = MsgLogoutOK
		if err := a.session.Auth.Logout(ctx); err != nil {
			reply = fmt.Sprintf(MsgLogoutFailed, err)
		}

	case CmdNew:
		if _, err := a.session.History.Create(ctx, ""); err != nil {
			reply = fmt.Sprintf(MsgNewChatFailed, err)
			break
		}
		reply = MsgWelcome

	default:
		reply = MsgHelp
	}

	if err := a.append(ctx, turn, textReply(reply)); err != nil {
		return err
	}
	a.publishEvent(ctx, turn, model.EventTypeCommand, cmd, nil)
	return nil
}

func (a *Assistant) login(ctx context.Context, args []string) string {
	if len(args) != 2 {
		return MsgLoginUsage
	}

	token, err := a.session.Auth.Login(ctx, args[0], args[1])
	if err != nil {
		return fmt.Sprintf(MsgLoginFailed, err)
	}

	if err := a.session.Wishlist.Sync(ctx, token); err != nil {
		a.logger.Warn("wishlist sync after login failed", zap.Error(err))
	}
	return fmt.Sprintf(MsgLoginOK, strings.TrimSpace(args[0]))
}
