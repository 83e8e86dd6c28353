package quest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/star-discord/legion-kanri-bot/internal/audit"
	"github.com/star-discord/legion-kanri-bot/internal/model"
)

// Handler exposes the quest service as a JSON API. It is presentation
// glue only: every business rule lives in the service and the store.
type Handler struct {
	svc      *Service
	auditLog *audit.MemoryLog
	logger   *log.Logger
}

func NewHandler(svc *Service, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// SetAuditLog wires the in-memory audit sink for the /audit endpoint.
func (h *Handler) SetAuditLog(l *audit.MemoryLog) {
	h.auditLog = l
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func decodeJSON(r *http.Request, out any) error {
	return json.NewDecoder(r.Body).Decode(out)
}

// actorFromRequest reads the identity the upstream gateway resolved.
func actorFromRequest(r *http.Request) model.Actor {
	a := model.Actor{
		ID:  strings.TrimSpace(r.Header.Get("X-Actor-Id")),
		Tag: strings.TrimSpace(r.Header.Get("X-Actor-Tag")),
	}
	if roles := strings.TrimSpace(r.Header.Get("X-Actor-Roles")); roles != "" {
		for _, role := range strings.Split(roles, ",") {
			if role = strings.TrimSpace(role); role != "" {
				a.Roles = append(a.Roles, role)
			}
		}
	}
	return a
}

// writeQuestErr maps the error taxonomy onto specific, actionable
// messages. Conflict-family and busy outcomes invite a retry.
func (h *Handler) writeQuestErr(w http.ResponseWriter, err error) {
	var capErr *CapacityError
	switch {
	case errors.As(err, &capErr):
		writeErr(w, http.StatusConflict, fmt.Sprintf("only %d slots remain", capErr.Remaining))
	case errors.Is(err, ErrNotFound):
		writeErr(w, http.StatusNotFound, "quest not found")
	case errors.Is(err, ErrQuestClosed):
		writeErr(w, http.StatusConflict, "this quest is closed for new acceptances")
	case errors.Is(err, ErrDuplicateActive):
		writeErr(w, http.StatusConflict, "you already accepted this quest; cancel or report it first")
	case errors.Is(err, ErrNoActiveAcceptance):
		writeErr(w, http.StatusConflict, "you have no active acceptance on this quest")
	case errors.Is(err, ErrAlreadyArchived):
		writeErr(w, http.StatusConflict, "this quest is already archived")
	case errors.Is(err, ErrBusy):
		writeErr(w, http.StatusConflict, "the quest is being updated, please retry")
	case errors.Is(err, ErrConflict):
		writeErr(w, http.StatusConflict, "the quest changed, please retry")
	case errors.Is(err, ErrUnauthorized):
		writeErr(w, http.StatusForbidden, "only the quest creator or a manager can do this")
	case errors.Is(err, ErrInvalidPeople):
		writeErr(w, http.StatusBadRequest, "people must be 1 or greater")
	case errors.Is(err, ErrInvalidCapacity):
		writeErr(w, http.StatusBadRequest, "quest capacity must be 1 or greater")
	case errors.Is(err, ErrNoParticipants):
		writeErr(w, http.StatusBadRequest, "quest has no active participants to message")
	default:
		h.logger.Printf("quest api: %v", err)
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}

// Guilds routes /api/guilds/{guild}/... requests.
func (h *Handler) Guilds(w http.ResponseWriter, r *http.Request) {
	tail := strings.TrimPrefix(r.URL.Path, "/api/guilds/")
	parts := strings.Split(strings.Trim(tail, "/"), "/")
	if len(parts) < 2 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, "not found")
		return
	}
	guildID := parts[0]

	switch parts[1] {
	case "quests":
		h.quests(w, r, guildID, parts[2:])
	case "acceptances":
		h.myAcceptances(w, r, guildID)
	case "audit":
		h.auditEntries(w, r, guildID)
	default:
		writeErr(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) quests(w http.ResponseWriter, r *http.Request, guildID string, rest []string) {
	switch len(rest) {
	case 0:
		switch r.Method {
		case http.MethodGet:
			h.list(w, r, guildID)
		case http.MethodPost:
			h.create(w, r, guildID)
		default:
			writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case 1:
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.preview(w, r, guildID, rest[0])
	case 2:
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.mutate(w, r, guildID, rest[0], rest[1])
	default:
		writeErr(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, guildID string) {
	quests, err := h.svc.List(r.Context(), guildID, ListFilter{Status: r.URL.Query().Get("status")})
	if err != nil {
		h.writeQuestErr(w, err)
		return
	}

	type item struct {
		model.Quest
		Status model.QuestStatus `json:"status"`
		Slots  Slots             `json:"slots"`
	}
	out := make([]item, 0, len(quests))
	for _, q := range quests {
		out = append(out, item{Quest: q, Status: q.Status(), Slots: RemainingSlots(q)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"quests": out})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, guildID string) {
	actor := actorFromRequest(r)
	if actor.ID == "" {
		writeErr(w, http.StatusUnauthorized, "actor identity required")
		return
	}

	var body struct {
		Title  string `json:"title"`
		People int    `json:"people"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	q, err := h.svc.Create(r.Context(), CreateRequest{
		GuildID: guildID,
		Actor:   actor,
		Title:   body.Title,
		People:  body.People,
	})
	if err != nil {
		h.writeQuestErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request, guildID, questID string) {
	q, slots, err := h.svc.Preview(r.Context(), guildID, questID)
	if err != nil {
		h.writeQuestErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"quest":  q,
		"status": q.Status(),
		"slots":  slots,
	})
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, guildID, questID, action string) {
	actor := actorFromRequest(r)
	if actor.ID == "" {
		writeErr(w, http.StatusUnauthorized, "actor identity required")
		return
	}

	switch action {
	case "accept":
		var body struct {
			People      int    `json:"people"`
			Comment     string `json:"comment"`
			ChannelName string `json:"channelName"`
		}
		if err := decodeJSON(r, &body); err != nil {
			writeErr(w, http.StatusBadRequest, "invalid json")
			return
		}
		res, err := h.svc.Accept(r.Context(), AcceptRequest{
			GuildID:     guildID,
			QuestID:     questID,
			Actor:       actor,
			People:      body.People,
			Comment:     body.Comment,
			ChannelName: body.ChannelName,
		})
		if err != nil {
			h.writeQuestErr(w, err)
			return
		}
		msg := "quest accepted"
		if res.WasFull {
			msg = "quest accepted; the quest is now full and has been closed"
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"quest":      res.Quest,
			"acceptance": res.Acceptance,
			"wasFull":    res.WasFull,
			"message":    msg,
		})

	case "cancel", "fail":
		var body struct {
			UserID string `json:"userId"`
		}
		if err := decodeJSON(r, &body); err != nil {
			writeErr(w, http.StatusBadRequest, "invalid json")
			return
		}
		var (
			q   model.Quest
			err error
		)
		if action == "cancel" {
			q, err = h.svc.Cancel(r.Context(), guildID, questID, actor, body.UserID)
		} else {
			q, err = h.svc.Fail(r.Context(), guildID, questID, actor, body.UserID)
		}
		if err != nil {
			h.writeQuestErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"quest": q, "status": q.Status()})

	case "archive":
		q, err := h.svc.Archive(r.Context(), guildID, questID, actor)
		if err != nil {
			h.writeQuestErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"quest": q, "status": q.Status()})

	case "broadcast":
		var body struct {
			Message string `json:"message"`
		}
		if err := decodeJSON(r, &body); err != nil {
			writeErr(w, http.StatusBadRequest, "invalid json")
			return
		}
		if strings.TrimSpace(body.Message) == "" {
			writeErr(w, http.StatusBadRequest, "message is required")
			return
		}
		results, err := h.svc.Broadcast(r.Context(), guildID, questID, actor, body.Message)
		if err != nil {
			h.writeQuestErr(w, err)
			return
		}
		delivered := 0
		var failed []string
		for _, d := range results {
			if d.OK {
				delivered++
			} else {
				failed = append(failed, d.UserID)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"recipients": len(results),
			"delivered":  delivered,
			"failed":     failed,
		})

	default:
		writeErr(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) myAcceptances(w http.ResponseWriter, r *http.Request, guildID string) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("user"))
	if userID == "" {
		userID = actorFromRequest(r).ID
	}
	if userID == "" {
		writeErr(w, http.StatusBadRequest, "user is required")
		return
	}

	items, err := h.svc.MyAcceptances(r.Context(), guildID, userID)
	if err != nil {
		h.writeQuestErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"acceptances": items})
}

func (h *Handler) auditEntries(w http.ResponseWriter, r *http.Request, guildID string) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.auditLog == nil {
		writeJSON(w, http.StatusOK, map[string]any{"entries": []audit.Entry{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": h.auditLog.List(guildID)})
}
