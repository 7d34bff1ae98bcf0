package resources

import (
	"embed"
	"os"

	"github.com/pkg/errors"
)

//go:embed defaults
var defaults embed.FS

const (
	PromptTemplate   = "defaults/prompt.tmpl"
	ConsultationBody = "defaults/consultation.txt"
	Signature        = "defaults/signature.html"
	EmailSamples     = "defaults/email_samples.json"
)

// Load reads path when set, otherwise the embedded default.
func Load(path, defaultName string) ([]byte, error) {
	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read resource %s", path)
		}
		return content, nil
	}
	content, err := defaults.ReadFile(defaultName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read embedded resource %s", defaultName)
	}
	return content, nil
}

func MustLoadString(path, defaultName string) string {
	content, err := Load(path, defaultName)
	if err != nil {
		panic(err)
	}
	return string(content)
}
