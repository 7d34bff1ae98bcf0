package i18n

import (
	"embed"
	"path"

	"github.com/BurntSushi/toml"
	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pkg/errors"
	"golang.org/x/text/language"

	"github.com/customeros/replydesk/internal/enum"
)

//go:embed locales/*.toml
var localeFiles embed.FS

const (
	MsgCategoryDirectAnswer            = "CategoryDirectAnswer"
	MsgCategoryAlternativeAnswer       = "CategoryAlternativeAnswer"
	MsgCategoryInfoRequest             = "CategoryInfoRequest"
	MsgCategoryPaidConsultationOffer   = "CategoryPaidConsultationOffer"
	MsgGenerationParseFailedSubject    = "GenerationParseFailedSubject"
	MsgGenerationParseFailedBody       = "GenerationParseFailedBody"
	MsgGenerationProviderFailedSubject = "GenerationProviderFailedSubject"
	MsgGenerationProviderFailedBody    = "GenerationProviderFailedBody"
	MsgGroundingHeader                 = "GroundingHeader"
	MsgGroundingNone                   = "GroundingNone"
	MsgReplyPrefix                     = "ReplyPrefix"
)

var categoryMessages = map[enum.CandidateCategory]string{
	enum.CandidateDirectAnswer:          MsgCategoryDirectAnswer,
	enum.CandidateAlternativeAnswer:     MsgCategoryAlternativeAnswer,
	enum.CandidateInfoRequest:           MsgCategoryInfoRequest,
	enum.CandidatePaidConsultationOffer: MsgCategoryPaidConsultationOffer,
}

type Translator struct {
	locale    string
	localizer *goi18n.Localizer
}

// NewTranslator loads the embedded message files and localizes to locale, falling back to English.
func NewTranslator(locale string) (*Translator, error) {
	bundle := goi18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	entries, err := localeFiles.ReadDir("locales")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list locale files")
	}
	for _, entry := range entries {
		filePath := path.Join("locales", entry.Name())
		content, err := localeFiles.ReadFile(filePath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read locale file %s", filePath)
		}
		if _, err := bundle.ParseMessageFileBytes(content, filePath); err != nil {
			return nil, errors.Wrapf(err, "failed to parse locale file %s", filePath)
		}
	}

	if locale == "" {
		locale = language.English.String()
	}
	return &Translator{
		locale:    locale,
		localizer: goi18n.NewLocalizer(bundle, locale, language.English.String()),
	}, nil
}

func (t *Translator) Locale() string {
	return t.locale
}

// T returns the message id itself when no translation exists.
func (t *Translator) T(messageID string) string {
	msg, err := t.localizer.Localize(&goi18n.LocalizeConfig{MessageID: messageID})
	if err != nil {
		return messageID
	}
	return msg
}

func (t *Translator) CategoryLabel(category enum.CandidateCategory) string {
	messageID, ok := categoryMessages[category]
	if !ok {
		return category.String()
	}
	return t.T(messageID)
}

func (t *Translator) ReplyPrefix() string {
	return t.T(MsgReplyPrefix)
}
