package resource

import "net/http"

// redirectTarget names where a write action sends the client afterwards.
type redirectTarget int

const (
	redirectNone redirectTarget = iota
	// redirectResource targets the singular location for the written
	// record, falling back to the collection when show is not enabled.
	redirectResource
	redirectCollection
)

// messageKind selects which Notices template becomes the flash message.
type messageKind int

const (
	msgNone messageKind = iota
	msgCreated
	msgUpdated
	msgDestroyed
	msgDestroyFailed
)

// disposition is one row of the write policy: what to do with the result
// of a mutation. Either redirect is set (with an optional flash message)
// or rerender names the form template to re-render with the record's
// validation errors.
type disposition struct {
	status   int
	redirect redirectTarget
	notice   messageKind // success notice
	alert    messageKind // error alert
	rerender Action      // form template for the failure branch
}

// writePolicy maps write action and mutation outcome to its disposition.
// This is the whole branching rule set for writes; the handlers only
// execute it.
var writePolicy = map[Action]map[bool]disposition{
	ActionCreate: {
		true:  {status: http.StatusSeeOther, redirect: redirectResource, notice: msgCreated},
		false: {status: http.StatusUnprocessableEntity, rerender: ActionNew},
	},
	ActionUpdate: {
		true:  {status: http.StatusSeeOther, redirect: redirectResource, notice: msgUpdated},
		false: {status: http.StatusUnprocessableEntity, rerender: ActionEdit},
	},
	ActionDestroy: {
		true:  {status: http.StatusSeeOther, redirect: redirectCollection, notice: msgDestroyed},
		false: {status: http.StatusSeeOther, redirect: redirectCollection, alert: msgDestroyFailed},
	},
}

// message resolves a messageKind against the configured Notices.
func (s *settings) message(kind messageKind, name Name) string {
	switch kind {
	case msgCreated:
		return s.notice(s.notices.Created, name)
	case msgUpdated:
		return s.notice(s.notices.Updated, name)
	case msgDestroyed:
		return s.notice(s.notices.Destroyed, name)
	case msgDestroyFailed:
		return s.notice(s.notices.DestroyFailed, name)
	default:
		return ""
	}
}

// redirectLocation resolves the redirect target to a concrete path. The
// singular target falls back to the collection when the show action is
// not part of the enabled action set.
func (s *settings) redirectLocation(target redirectTarget, id string) string {
	switch target {
	case redirectResource:
		if s.actions[ActionShow] && id != "" {
			if s.resource != nil {
				return s.resource(id)
			}
			return s.collection + "/" + id
		}
		return s.collection
	case redirectCollection:
		return s.collection
	default:
		return ""
	}
}
