package enum

type EmailClassification string

const (
	EmailAutoResponder      EmailClassification = "auto_responder"
	EmailBounceNotification EmailClassification = "bounce_notification"
	EmailBulk               EmailClassification = "bulk_email"
	EmailOK                 EmailClassification = "ok"
)

func (t EmailClassification) String() string {
	return string(t)
}

// IsAutomated reports whether nobody is waiting for a human answer to the message.
func (t EmailClassification) IsAutomated() bool {
	switch t {
	case EmailAutoResponder, EmailBounceNotification, EmailBulk:
		return true
	default:
		return false
	}
}

type PartKind string

const (
	PartLeaf      PartKind = "leaf"
	PartMultipart PartKind = "multipart"
)

type PartEncoding string

const (
	EncodingBase64URL PartEncoding = "base64url"
	EncodingBase64    PartEncoding = "base64"
	EncodingIdentity  PartEncoding = "identity"
)
