package entity

import "time"

// ProcessorResponse is an audit record of a single exchange with PayGate or
// of a received callback. Every vendor interaction is recorded, success or
// not, so failed payments can be traced afterwards.
type ProcessorResponse struct {
	PaymentRef string      `json:"payment_ref" bson:"payment_ref"`
	Operation  string      `json:"operation" bson:"operation"`
	Outcome    string      `json:"outcome" bson:"outcome"`
	Payload    interface{} `json:"payload,omitempty" bson:"payload,omitempty"`
	Time       time.Time   `json:"time" bson:"time"`
}

func (p *ProcessorResponse) DataType() string {
	return "processor_response"
}

// LogMessage is a structured log record persisted by the store-backed
// log sink.
type LogMessage struct {
	Time   time.Time `json:"time" bson:"time"`
	Level  string    `json:"level" bson:"level"`
	Module string    `json:"module" bson:"module"`
	Text   string    `json:"text" bson:"text"`
	Error  string    `json:"error,omitempty" bson:"error,omitempty"`
}

func (l *LogMessage) DataType() string {
	return "log_message"
}
