// Package ticket provides a client for the support-ticket platform API
// and the wire types it exchanges.
package ticket

import (
	"encoding/json"
	"strings"
)

// Message type codes accepted by the messages endpoint.
const (
	MessageTypeEmail    = 1
	MessageTypeInternal = 3
	MessageTypeReply    = 5
)

// DisplayStatusResolved is the platform's status id for resolved tickets.
const DisplayStatusResolved = 2

// ID is a ticket or message identifier. The platform serializes ids
// inconsistently as JSON numbers or strings; ID normalizes both to a
// canonical string key.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// IsZero reports whether the id is absent (null or never set).
func (id ID) IsZero() bool { return id == "" }

// StringList tolerates a single string where the API should send a list.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*l = many
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	if one == "" {
		*l = nil
		return nil
	}
	*l = StringList{one}
	return nil
}

// Join renders the list as a comma-separated header value.
func (l StringList) Join() string { return strings.Join(l, ", ") }

// Recipients carries the address lists of an email-backed message.
type Recipients struct {
	From StringList `json:"from,omitempty"`
	To   StringList `json:"to,omitempty"`
	CC   StringList `json:"cc,omitempty"`
}

// Message is one communication unit inside a ticket.
type Message struct {
	ID             ID         `json:"id"`
	TicketID       ID         `json:"ticketId"`
	UserName       string     `json:"userName"`
	UserEmail      string     `json:"userEmail"`
	ReplyMessageID ID         `json:"replyMessageId"`
	CreateTime     string     `json:"createTime"`
	Recipients     Recipients `json:"recipients"`
	Content        string     `json:"content"`

	// Resolved marks the synthetic "no reply needed" ground-truth
	// sentinel. It never arrives over the wire.
	Resolved bool `json:"isResolved,omitempty"`
}

// Ticket is one support-ticket list record.
type Ticket struct {
	ID              ID     `json:"id"`
	Title           string `json:"title"`
	DisplayStatusID int    `json:"displayStatusId"`
	StaffID         ID     `json:"staffId"`
}

// ListFilter narrows the ticket page query.
type ListFilter struct {
	DisplayStatusIDs []int    `json:"displayStatusIds,omitempty"`
	StaffIDs         []string `json:"staffIds,omitempty"`
}
