package services

import (
	"context"
	"io/fs"

	"github.com/pkg/errors"

	"github.com/customeros/replydesk/config"
	"github.com/customeros/replydesk/interfaces"
	"github.com/customeros/replydesk/internal/i18n"
	"github.com/customeros/replydesk/internal/logger"
	"github.com/customeros/replydesk/internal/resources"
	"github.com/customeros/replydesk/services/ai"
	"github.com/customeros/replydesk/services/classifier"
	"github.com/customeros/replydesk/services/composer"
	"github.com/customeros/replydesk/services/email_filter"
	"github.com/customeros/replydesk/services/extractor"
	"github.com/customeros/replydesk/services/generator"
	"github.com/customeros/replydesk/services/gmail"
	"github.com/customeros/replydesk/services/retriever"
	"github.com/customeros/replydesk/services/storage"
	"github.com/customeros/replydesk/services/threadcache"
)

type Services struct {
	Translator         *i18n.Translator
	MailProvider       interfaces.MailProvider
	AIProvider         interfaces.AIProvider
	EmailFilterService interfaces.EmailFilterService
	Extractor          *extractor.Extractor
	Retriever          *retriever.Retriever
	Generator          *generator.Generator
	Classifier         *classifier.Classifier
	AttachmentStorage  interfaces.AttachmentStorage
	Composer           *composer.Composer
	ThreadCache        *threadcache.Coordinator
}

func InitServices(ctx context.Context, cfg *config.Config, log logger.Logger) (*Services, error) {
	translator, err := i18n.NewTranslator(cfg.AppConfig.Locale)
	if err != nil {
		return nil, err
	}
	log.Infof("Candidate labels use locale %s", translator.Locale())

	mailProvider, err := gmail.NewProvider(ctx, cfg.GmailConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to init gmail provider")
	}

	// without a key candidates are skipped and threads are cached with none
	var aiProvider interfaces.AIProvider
	if cfg.GeminiConfig.ApiKey != "" {
		aiProvider = ai.NewGeminiService(cfg.GeminiConfig)
	} else {
		log.Warn("GEMINI_API_KEY is not set, response generation is disabled")
	}

	corpus, err := retriever.LoadCorpus(cfg.GeneratorConfig.SamplesPath)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warnf("Sample corpus %s not found, prompts will carry no examples", cfg.GeneratorConfig.SamplesPath)
	} else if err != nil {
		return nil, err
	}
	exampleRetriever := retriever.NewRetriever(corpus, cfg.GeneratorConfig.RetrieverTopK)
	log.Infof("Loaded %d historical examples", exampleRetriever.Size())

	promptTemplate, err := resources.Load(cfg.GeneratorConfig.PromptTemplatePath, resources.PromptTemplate)
	if err != nil {
		return nil, err
	}
	consultationBody, err := resources.Load(cfg.GeneratorConfig.ConsultationBodyPath, resources.ConsultationBody)
	if err != nil {
		return nil, err
	}
	responseGenerator, err := generator.NewGenerator(aiProvider, exampleRetriever, translator, log, generator.Options{
		PromptTemplate:       string(promptTemplate),
		ConsultationBody:     string(consultationBody),
		Persona:              cfg.GeneratorConfig.Persona,
		ReferenceCodePattern: cfg.GeneratorConfig.ReferenceCodePattern,
		MaxSimpleCandidates:  cfg.GeneratorConfig.MaxSimpleCandidates,
	})
	if err != nil {
		return nil, err
	}

	bodyExtractor := extractor.NewExtractor(cfg.ExtractorConfig.QuoteMarkers)
	emailFilter := email_filter.NewEmailFilterService()
	threadClassifier := classifier.NewClassifier(mailProvider, bodyExtractor, responseGenerator, emailFilter, log, classifier.Options{
		IgnoreSenders: cfg.ClassifierConfig.IgnoreSenders,
		SkipAutomated: cfg.ClassifierConfig.SkipAutomated,
	})

	signature, err := resources.Load(cfg.ReplyConfig.SignaturePath, resources.Signature)
	if err != nil {
		return nil, err
	}
	attachmentStorage := storage.NewAttachmentStorage(cfg.StorageConfig)
	replyComposer := composer.NewComposer(composer.Config{
		Signature:       string(signature),
		MessageIDDomain: cfg.ReplyConfig.MessageIDDomain,
	}, attachmentStorage)

	threadCache := threadcache.NewCoordinator(threadcache.Dependencies{
		Mail:       mailProvider,
		Classifier: threadClassifier,
		Composer:   replyComposer,
	}, threadcache.Config{
		Queries:            cfg.CacheConfig.Queries,
		LabelIDs:           cfg.CacheConfig.LabelIDs,
		MaxResultsPerQuery: cfg.CacheConfig.MaxResultsPerQuery,
		Concurrency:        cfg.CacheConfig.RefreshConcurrency,
		SelfAddress:        cfg.GmailConfig.UserAddress,
		SenderName:         cfg.ReplyConfig.SenderName,
	}, log)

	return &Services{
		Translator:         translator,
		MailProvider:       mailProvider,
		AIProvider:         aiProvider,
		EmailFilterService: emailFilter,
		Extractor:          bodyExtractor,
		Retriever:          exampleRetriever,
		Generator:          responseGenerator,
		Classifier:         threadClassifier,
		AttachmentStorage:  attachmentStorage,
		Composer:           replyComposer,
		ThreadCache:        threadCache,
	}, nil
}
