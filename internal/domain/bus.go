package domain

import "errors"

var (
	ErrBusFull   = errors.New("ingest queue is full")
	ErrBusClosed = errors.New("ingest bus is closed")
)

// FailureNotice prefixes the reply sent when a message could not be stored.
const FailureNotice = "Failed to insert message to vault. Error: "

// MessageBus routes messages between the transport and the ingest runner.
type MessageBus interface {
	// Publish returns ErrBusFull or ErrBusClosed when d was not accepted.
	Publish(d Delivery) error
	Subscribe() <-chan Delivery
	SendOutbound(msg OutboundMessage)
	OnOutbound(channelName string, handler func(OutboundMessage))
	Close()
}

// Delivery is one accepted update on its way to the pipeline.
type Delivery struct {
	Channel  string
	UpdateID int
	Message  InboundMessage
}

// OutboundKind distinguishes acknowledgment from plain replies.
type OutboundKind string

const (
	OutboundAck     OutboundKind = "ack"     // message stored
	OutboundFailure OutboundKind = "failure" // message dropped, Content holds the notice
	OutboundText    OutboundKind = "text"
)

type OutboundMessage struct {
	Channel   string
	ChatID    int64
	MessageID int64 // message being acknowledged or replied to
	Kind      OutboundKind
	Content   string
}
