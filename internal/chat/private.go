package chat

import "strings"

const privatePrefix = "private-"

// Member names are escaped inside private room names so that the single
// separating hyphen is unambiguous.
var (
	memberEscaper   = strings.NewReplacer("%", "%25", "-", "%2D")
	memberUnescaper = strings.NewReplacer("%25", "%", "%2D", "-")
)

// PrivateRoom identifies a two-party room by the unordered pair of its
// members, so both parties resolve to the same room whoever invited whom.
type PrivateRoom struct {
	first, second string
}

// NewPrivateRoom returns the key for the pair a, b.
func NewPrivateRoom(a, b string) PrivateRoom {
	if b < a {
		a, b = b, a
	}
	return PrivateRoom{first: a, second: b}
}

// Name is the room name used on the wire. Hyphens and percent signs in
// either member are escaped, so distinct pairs never share a name.
func (p PrivateRoom) Name() string {
	return privatePrefix + memberEscaper.Replace(p.first) + "-" + memberEscaper.Replace(p.second)
}

// Peer returns the other member of the pair.
func (p PrivateRoom) Peer(username string) (string, bool) {
	switch username {
	case p.first:
		return p.second, true
	case p.second:
		return p.first, true
	}
	return "", false
}

// IsPrivateRoom reports whether name uses the private room convention.
func IsPrivateRoom(name string) bool {
	return strings.HasPrefix(name, privatePrefix)
}

// privateTarget recovers the other party from a "private-<a>-<b>" name as
// seen by username. Names in canonical form are unescaped first. Otherwise
// knowing one side lets hyphenated names survive; when username appears on
// neither side the third hyphen-separated field is used.
func privateTarget(room, username string) string {
	if !IsPrivateRoom(room) {
		return ""
	}
	rest := strings.TrimPrefix(room, privatePrefix)

	if first, second, ok := strings.Cut(rest, "-"); ok && !strings.Contains(second, "-") {
		first, second = memberUnescaper.Replace(first), memberUnescaper.Replace(second)
		switch {
		case username == first && second != "":
			return second
		case username == second && first != "":
			return first
		}
	}

	if peer, ok := strings.CutPrefix(rest, username+"-"); ok && peer != "" {
		return peer
	}
	if peer, ok := strings.CutSuffix(rest, "-"+username); ok && peer != "" {
		return peer
	}

	parts := strings.Split(rest, "-")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// notifyInvitee sends a private-notification to the invitee's connection.
// An invitee that is not connected gets nothing and the inviter is not told.
func (c *Coordinator) notifyInvitee(inviterID ConnID, inviter, invitee string) {
	if invitee == inviter {
		return
	}
	targetID, ok := c.lookup(invitee, inviterID)
	if !ok {
		c.logger.Debug().Str("inviter", inviter).Str("invitee", invitee).Msg("private invite has no recipient")
		return
	}
	c.transport.Send(targetID, Envelope{Event: EventPrivateNotification, Data: inviter})
}

// DeclinePrivate tells the inviter that the connection's user turned the
// invitation down. Nothing happens if the inviter is gone.
func (c *Coordinator) DeclinePrivate(id ConnID, inviter string) {
	user := c.users[id]
	if user == nil {
		c.sendError(id, "Choose a username first.")
		return
	}

	name := Sanitize(strings.TrimSpace(inviter))
	if name == "" {
		return
	}
	inviterID, ok := c.lookup(name, id)
	if !ok {
		return
	}
	c.transport.Send(inviterID, Envelope{Event: EventErrorMessage, Data: user.Username + " declined your invite."})
}
