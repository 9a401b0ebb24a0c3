package events

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/scmsdev/scms-app/models"
	"github.com/scmsdev/scms-app/utils"
)

// Event names pushed to connected dashboards.
const (
	EventCRCreated   = "cr_created"
	EventCRUpdated   = "cr_updated"
	EventCRSubmitted = "cr_submitted"
	EventCRApproved  = "cr_approved"
	EventCRRejected  = "cr_rejected"
	EventCRDeleted   = "cr_deleted"
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub holds every connected dashboard client along with its role, so
// broadcasts can be filtered the same way listings are.
type hub struct {
	clients map[*websocket.Conn]clientInfo
	mutex   sync.Mutex
}

type clientInfo struct {
	userID uint
	role   string
}

var eventsHub = hub{
	clients: make(map[*websocket.Conn]clientInfo),
}

func RegisterClient(conn *websocket.Conn, userID uint, role string) {
	eventsHub.mutex.Lock()
	defer eventsHub.mutex.Unlock()
	eventsHub.clients[conn] = clientInfo{userID: userID, role: role}
}

func UnregisterClient(conn *websocket.Conn) {
	eventsHub.mutex.Lock()
	defer eventsHub.mutex.Unlock()
	delete(eventsHub.clients, conn)
	conn.Close()
}

// BroadcastChangeRequest pushes a lifecycle event to every client whose role
// is allowed to see the record: creators get their own records, approvers
// everything past Draft, administrators and auditors everything.
func BroadcastChangeRequest(action string, cr *models.ChangeRequest) {
	msg := Message{
		Event: "cr_" + strings.ToLower(action),
		Data:  cr,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		utils.ErrorLogger.Printf("Error marshaling event %s: %v", msg.Event, err)
		return
	}

	eventsHub.mutex.Lock()
	defer eventsHub.mutex.Unlock()

	for conn, info := range eventsHub.clients {
		if !mayObserve(info, cr) {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			utils.ErrorLogger.Printf("Error broadcasting to client: %v", err)
			delete(eventsHub.clients, conn)
			conn.Close()
		}
	}
}

func mayObserve(info clientInfo, cr *models.ChangeRequest) bool {
	role := models.NormalizeRole(info.role)
	switch {
	case models.IsAdminRole(role):
		return true
	case models.IsDeveloperRole(role):
		return cr.CreatedByID == info.userID
	case models.CanApproveCRs(role):
		return cr.Status != models.StatusDraft
	default:
		return true
	}
}
