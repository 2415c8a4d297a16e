package handler

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Kaetram/Kaetram-Open-sub002/internal/net"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/net/packet"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/persist"
	"github.com/Kaetram/Kaetram-Open-sub002/internal/system"
	"go.uber.org/zap"
)

const (
	storeTimeout      = 5 * time.Second
	maxUsernameLength = 32
	maxPasswordLength = 64
)

// HandleHandshake answers the first frame of a connection with the server
// identity and the session token, then waits for credentials.
func HandleHandshake(sess *net.Session, r *packet.Reader, deps *Deps) {
	var hs packet.Handshake
	if err := r.Decode(&hs); err != nil && !errors.Is(err, packet.ErrNoPayload) {
		deps.Log.Debug("bad handshake", zap.Uint64("session", sess.ID), zap.Error(err))
		sess.Close()
		return
	}
	send(sess, deps, packet.Message{Op: packet.OpHandshake, Data: packet.Handshake{
		Token:    sess.Token.String(),
		ServerID: deps.Config.Server.ID,
		Name:     deps.Config.Server.Name,
	}})
	sess.SetState(packet.StateLogin)
}

// HandleLogin checks credentials, or registers a new account, off the game
// loop. The player is added to the world back on the loop through Post.
func HandleLogin(sess *net.Session, r *packet.Reader, deps *Deps) {
	var req packet.Login
	if err := r.Decode(&req); err != nil {
		send(sess, deps, notification("Malformed login request."))
		return
	}
	username := strings.TrimSpace(req.Username)
	if msg := validateCredentials(username, req.Password); msg != "" {
		send(sess, deps, notification(msg))
		return
	}
	if deps.Store == nil {
		send(sess, deps, notification("Logins are disabled."))
		return
	}

	sess.SetState(packet.StateLoading)
	w := deps.World
	log := deps.Log.With(zap.Uint64("session", sess.ID), zap.String("username", username))

	go func() {
		rec, msg := loadRecord(deps.Store, username, req.Password, req.Register, log)
		w.Post(func() {
			if sess.IsClosed() {
				return
			}
			if rec == nil {
				failLogin(sess, deps, msg)
				return
			}
			p, err := w.AddPlayer(rec, sess, sess.ID)
			if errors.Is(err, system.ErrOnline) {
				failLogin(sess, deps, "That player is already logged in.")
				return
			}
			if err != nil {
				log.Error("add player", zap.Error(err))
				failLogin(sess, deps, "Could not enter the world.")
				return
			}
			sess.Username = p.Username
			sess.SetState(packet.StateInWorld)
		})
	}()
}

// loadRecord runs on its own goroutine. On failure it returns a nil
// record and the message to show the player.
func loadRecord(store system.PlayerStore, username, password string, register bool, log *zap.Logger) (*persist.PlayerRecord, string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if register {
		rec, err := store.Create(ctx, username, password)
		switch {
		case errors.Is(err, persist.ErrExists):
			return nil, "That username is already taken."
		case err != nil:
			log.Error("create player", zap.Error(err))
			return nil, "Could not create the account, try again later."
		}
		log.Info("player registered")
		return rec, ""
	}

	ok, err := store.Exists(ctx, username, password)
	if err != nil {
		log.Error("check credentials", zap.Error(err))
		return nil, "Could not log in, try again later."
	}
	if !ok {
		return nil, "Invalid username or password."
	}
	rec, err := store.Load(ctx, username)
	if err != nil {
		log.Error("load player", zap.Error(err))
		return nil, "Could not load your character."
	}
	return rec, ""
}

func failLogin(sess *net.Session, deps *Deps, msg string) {
	send(sess, deps, notification(msg))
	sess.SetState(packet.StateLogin)
}

func validateCredentials(username, password string) string {
	n := utf8.RuneCountInString(username)
	if n == 0 || n > maxUsernameLength {
		return "Usernames must be between 1 and 32 characters."
	}
	if strings.ContainsAny(username, " /\t\n") {
		return "Usernames may not contain spaces or slashes."
	}
	if password == "" || len(password) > maxPasswordLength {
		return "Invalid password."
	}
	return ""
}
