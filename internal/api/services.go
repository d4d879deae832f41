package api

import (
	"github.com/yyupcompany/kyyupgame-sub066/internal/transport"
	"go.uber.org/zap"
)

// Services все обертки поверх одного Requester.
type Services struct {
	ActivityCenter   *ActivityCenter
	Advertisements   *Advertisements
	AIModels         *AIModels
	Conversations    *Conversations
	Memory           *MemoryService
	Chat             *Chat
	DataImport       *DataImport
	Security         *Security
	EnrollmentPlans  *EnrollmentPlans
	EnrollmentQuotas *EnrollmentQuotas
}

func New(req transport.Requester, logger *zap.Logger) *Services {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")
	return &Services{
		ActivityCenter:   NewActivityCenter(req, logger),
		Advertisements:   NewAdvertisements(req, logger),
		AIModels:         NewAIModels(req, logger),
		Conversations:    NewConversations(req, logger),
		Memory:           NewMemoryService(req, logger),
		Chat:             NewChat(req, logger),
		DataImport:       NewDataImport(req, logger),
		Security:         NewSecurity(req, logger),
		EnrollmentPlans:  NewEnrollmentPlans(req, logger),
		EnrollmentQuotas: NewEnrollmentQuotas(req, logger),
	}
}
