package domain

import "time"

type Channel string

const (
	ChannelChat Channel = "chat"
	ChannelMail Channel = "mail"
	ChannelAPI  Channel = "api"
)

// Attachment describes a stored payload file. The raw bytes live in object
// storage under StoragePath.
type Attachment struct {
	Name        string `json:"name"`
	MediaType   string `json:"media_type"`
	Size        int64  `json:"size"`
	StoragePath string `json:"storage_path"`
}

// IngestedItem is one inbound order/invoice item. Immutable once created.
type IngestedItem struct {
	ID          string       `json:"id"`
	Channel     Channel      `json:"channel"`
	Text        string       `json:"text,omitempty"`
	URL         string       `json:"url,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	ReceivedAt  time.Time    `json:"received_at"`
}

// InboundMessage is the transport envelope before attachments are stored.
type InboundMessage struct {
	Channel     Channel             `json:"channel"`
	Text        string              `json:"text,omitempty"`
	URL         string              `json:"url,omitempty"`
	Attachments []InboundAttachment `json:"attachments,omitempty"`
	ReceivedAt  time.Time           `json:"received_at"`
}

type InboundAttachment struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Data      []byte `json:"data"`
}
