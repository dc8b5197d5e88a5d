package game

import (
	"strings"

	"github.com/playperu/digitduel/internal/digitduel"
)

func (e *Engine) announce(ev digitduel.Event) error {
	name := strings.TrimSpace(ev.Name)
	if name == "" || ev.ConnID == "" {
		return ErrEmptyName
	}
	if err := e.register(ev.ConnID, name); err != nil {
		return err
	}
	e.logger.Debug("identity announced", "conn", ev.ConnID, "player", name)
	e.broadcastOnline()
	return nil
}

func (e *Engine) join(ev digitduel.Event) error {
	name := strings.TrimSpace(ev.Name)
	if name == "" {
		return ErrEmptyName
	}
	if !e.lobby.Known(ev.Mode) {
		return ErrUnknownMode
	}
	if seated := e.seatedElsewhere(name, ev.Mode); seated != "" {
		e.logger.Debug("join refused while seated", "mode", ev.Mode, "player", name, "seated", seated)
		return ErrSeatedElsewhere
	}
	if ev.ConnID != "" {
		if rec, ok := e.registry.Lookup(ev.ConnID); !ok || rec.Name != name {
			if err := e.register(ev.ConnID, name); err != nil {
				return err
			}
		}
	}

	left, err := e.lobby.Join(name, ev.Mode)
	if err != nil {
		return err
	}
	e.registry.SetRoom(name, ev.Mode)
	e.logger.Debug("player joined waiting room", "mode", ev.Mode, "player", name)

	for _, m := range left {
		e.broadcastWaiting(m)
	}
	e.broadcastWaiting(ev.Mode)
	e.broadcastOnline()
	return nil
}

// register binds conn to name. When the connection previously carried
// another name and that name has no other online connection left, the old
// name gives up its waiting places and game seats.
func (e *Engine) register(conn, name string) error {
	prev, had := e.registry.Lookup(conn)
	if err := e.registry.RegisterOrUpdate(conn, name); err != nil {
		return err
	}
	if had && prev.Name != name && !e.registry.IsOnline(prev.Name) {
		e.logger.Debug("identity renamed", "conn", conn, "from", prev.Name, "to", name)
		e.release(prev.Name)
	}
	return nil
}

// seatedElsewhere returns the mode of a game other than mode that seats name.
func (e *Engine) seatedElsewhere(name string, mode digitduel.Mode) digitduel.Mode {
	for _, m := range e.lobby.Modes() {
		if m == mode {
			continue
		}
		if g := e.modes[m].game; g != nil && g.plays(name) {
			return m
		}
	}
	return ""
}

func (e *Engine) leaveWaiting(ev digitduel.Event) error {
	name := strings.TrimSpace(ev.Name)
	if name == "" {
		return ErrEmptyName
	}
	ms, err := e.mode(ev.Mode)
	if err != nil {
		return err
	}
	if !e.lobby.Leave(name, ev.Mode) {
		return nil
	}
	e.broadcastWaiting(ev.Mode)
	if ms.game == nil || !ms.game.plays(name) {
		e.registry.ClearRoom(name)
	}
	return nil
}

// leaveRoom is an explicit exit from the lobby. It behaves like a disconnect
// of the sending connection.
func (e *Engine) leaveRoom(ev digitduel.Event) error {
	conn := ev.ConnID
	if conn == "" {
		c, ok := e.registry.FindConnectionByName(strings.TrimSpace(ev.Name))
		if !ok {
			return ErrUnknownConnection
		}
		conn = c
	}
	return e.disconnect(conn)
}

func (e *Engine) disconnect(conn string) error {
	rec, ok := e.registry.Remove(conn)
	if !ok {
		return ErrUnknownConnection
	}
	e.logger.Debug("player offline", "conn", conn, "player", rec.Name)
	if !e.registry.IsOnline(rec.Name) {
		e.release(rec.Name)
	}
	e.broadcastOnline()
	return nil
}

// release takes name out of every waiting room and every game.
func (e *Engine) release(name string) {
	for _, m := range e.lobby.RemoveEverywhere(name) {
		e.broadcastWaiting(m)
	}
	for _, m := range e.lobby.Modes() {
		ms := e.modes[m]
		if ms.game != nil && ms.game.plays(name) {
			e.depart(ms, name)
		}
	}
}

func (e *Engine) broadcastOnline() {
	e.notifier.Notify(e.registry.OnlineConns(), digitduel.Notification{
		Type: digitduel.KindOnlineList,
		Data: digitduel.OnlineList{Names: e.registry.ListOnlineNames()},
	})
}

// broadcastWaiting sends mode's list and its can-start level.
func (e *Engine) broadcastWaiting(mode digitduel.Mode) {
	names := e.lobby.Waiting(mode)
	if names == nil {
		names = []string{}
	}
	e.toRoom(mode, digitduel.KindWaitingList, digitduel.WaitingList{Names: names})
	e.toRoom(mode, digitduel.KindCanStart, digitduel.CanStart{CanStart: e.lobby.CanStart(mode)})
}

func (e *Engine) toRoom(mode digitduel.Mode, kind digitduel.Kind, data any) {
	e.notifier.Notify(e.registry.ConnsInRoom(mode), digitduel.Notification{Type: kind, Mode: mode, Data: data})
}

func (e *Engine) toPlayer(name string, mode digitduel.Mode, kind digitduel.Kind, data any) {
	conn, ok := e.registry.FindConnectionByName(name)
	if !ok {
		e.logger.Debug("no connection for player", "player", name, "kind", kind)
		return
	}
	e.notifier.Notify([]string{conn}, digitduel.Notification{Type: kind, Mode: mode, Data: data})
}

// reply answers the sending connection, falling back to the named player.
func (e *Engine) reply(conn, name string, mode digitduel.Mode, kind digitduel.Kind, data any) {
	if conn == "" {
		e.toPlayer(name, mode, kind, data)
		return
	}
	e.notifier.Notify([]string{conn}, digitduel.Notification{Type: kind, Mode: mode, Data: data})
}
