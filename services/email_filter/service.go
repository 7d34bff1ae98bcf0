package email_filter

import (
	"context"
	"strings"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"

	"github.com/customeros/replydesk/interfaces"
	"github.com/customeros/replydesk/internal/enum"
	"github.com/customeros/replydesk/internal/models"
	"github.com/customeros/replydesk/internal/tracing"
)

type emailFilterService struct{}

func NewEmailFilterService() interfaces.EmailFilterService {
	return &emailFilterService{}
}

// ScanMessage classifies an inbound message from its headers. Messages with no headers are EmailOK.
func (s *emailFilterService) ScanMessage(ctx context.Context, message *models.Message) (enum.EmailClassification, string) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailFilterService.ScanMessage")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if message == nil || message.Headers == nil {
		return enum.EmailOK, ""
	}

	classification, reason := s.classify(message)
	span.LogFields(tracingLog.String("classification", classification.String()), tracingLog.String("reason", reason))
	return classification, reason
}

func (s *emailFilterService) classify(message *models.Message) (enum.EmailClassification, string) {
	if isBounce, reason := s.isBounceNotification(message); isBounce {
		return enum.EmailBounceNotification, reason
	}
	if isAutoresponder, reason := s.isAutoresponder(message); isAutoresponder {
		return enum.EmailAutoResponder, reason
	}
	if isBulk, reason := s.isBulkEmail(message); isBulk {
		return enum.EmailBulk, reason
	}
	return enum.EmailOK, ""
}

func (s *emailFilterService) isBounceNotification(message *models.Message) (bool, string) {
	headers := message.Headers
	switch {
	case headers.Get("X-Failed-Recipients") != "":
		return true, "X-FAILED-RECIPIENTS header present"
	case strings.EqualFold(headers.Get("Content-Description"), "delivery report"):
		return true, "CONTENT-DESCRIPTION: DELIVERY REPORT header present"
	case hasBounceKeywords(headers.Get("Return-Path")):
		return true, "RETURN-PATH contains bounce keywords"
	case hasBounceKeywords(message.From):
		return true, "FROM contains bounce keywords"
	case isBounceSubject(message.Subject):
		return true, "SUBJECT contains bounce keywords"
	default:
		return false, ""
	}
}

func (s *emailFilterService) isAutoresponder(message *models.Message) (bool, string) {
	headers := message.Headers
	autoSubmitted := strings.ToLower(headers.Get("Auto-Submitted"))
	switch {
	case headers.Get("X-Autoreply") != "":
		return true, "X-AUTOREPLY header present"
	case headers.Get("X-Autorespond") != "" || headers.Get("X-Autoresponse") != "":
		return true, "X-AUTORESPONSE header present"
	case autoSubmitted != "" && autoSubmitted != "no":
		return true, "AUTO-SUBMITTED header present"
	case headers.Get("X-Loop") != "":
		return true, "X-LOOP header present"
	case strings.EqualFold(headers.Get("Precedence"), "auto_reply"):
		return true, "PRECEDENCE: AUTO_REPLY header present"
	default:
		return false, ""
	}
}

func (s *emailFilterService) isBulkEmail(message *models.Message) (bool, string) {
	headers := message.Headers
	precedence := strings.ToLower(headers.Get("Precedence"))
	switch {
	case headers.Get("List-Unsubscribe") != "":
		return true, "UNSUBSCRIBE header present"
	case precedence == "bulk" || precedence == "list" || precedence == "junk":
		return true, "PRECEDENCE: " + strings.ToUpper(precedence) + " header present"
	}

	if message.FromAddress == "" {
		return false, ""
	}
	if validation := mailvalidate.ValidateEmailSyntax(message.FromAddress); validation.IsSystemGenerated {
		return true, "FROM is system generated"
	}
	return false, ""
}

func hasBounceKeywords(str string) bool {
	return strings.Contains(strings.ToLower(str), "mailer-daemon")
}

var bounceSubjectKeywords = []string{
	"mail delivery failure",
	"undelivered mail returned to sender",
	"delivery status notification",
	"undeliverable",
	"undelivered",
	"delivery failure",
	"failure notice",
	"returned mail",
	"returned to sender",
}

func isBounceSubject(subject string) bool {
	subject = strings.ToLower(subject)
	for _, phrase := range bounceSubjectKeywords {
		if strings.Contains(subject, phrase) {
			return true
		}
	}
	return false
}
