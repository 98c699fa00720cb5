package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/notebase-ai/notebase/internal/ai"
	"github.com/notebase-ai/notebase/internal/model"
	appErr "github.com/notebase-ai/notebase/internal/pkg/errors"
	"github.com/notebase-ai/notebase/internal/repo"
	"github.com/notebase-ai/notebase/internal/retriever"
	"github.com/notebase-ai/notebase/internal/synthesis"
)

const sessionTitleChars = 80

type ChatService struct {
	sessions  *repo.ChatSessionRepo
	messages  *repo.MessageRepo
	retriever *retriever.Retriever
	engine    *synthesis.Engine
	history   int
	language  string
}

func NewChatService(sessions *repo.ChatSessionRepo, messages *repo.MessageRepo, rt *retriever.Retriever, engine *synthesis.Engine, historyWindow int, language string) *ChatService {
	if historyWindow <= 0 {
		historyWindow = 10
	}
	return &ChatService{
		sessions:  sessions,
		messages:  messages,
		retriever: rt,
		engine:    engine,
		history:   historyWindow,
		language:  language,
	}
}

func (s *ChatService) CreateSession(ctx context.Context, userID, notebookID, title string) (*model.ChatSession, error) {
	now := time.Now().Unix()
	session := &model.ChatSession{
		ID:         uuid.NewString(),
		NotebookID: notebookID,
		UserID:     userID,
		Title:      strings.TrimSpace(title),
		Ctime:      now,
		Mtime:      now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *ChatService) ListSessions(ctx context.Context, userID, notebookID string) ([]model.ChatSession, error) {
	return s.sessions.ListByNotebook(ctx, userID, notebookID)
}

func (s *ChatService) DeleteSession(ctx context.Context, userID, sessionID string) error {
	return s.sessions.Delete(ctx, userID, sessionID)
}

func (s *ChatService) ListMessages(ctx context.Context, userID, sessionID string) ([]model.Message, error) {
	if _, err := s.sessions.GetByID(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	return s.messages.ListBySession(ctx, sessionID)
}

type AskRequest struct {
	UserID       string
	SessionID    string
	Question     string
	SourceIDs    []string
	Style        string
	CustomPrompt string
	TopK         int
}

// Ask runs one question through retrieval and streaming synthesis,
// forwarding each delta to fn. Both the user turn and the assistant turn are
// persisted; when the stream fails mid-answer the partial assistant message
// is stored with its interrupted flag set and returned together with the
// cause.
func (s *ChatService) Ask(ctx context.Context, req AskRequest, fn ai.StreamFunc) (*model.Message, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, appErr.ErrInvalid
	}
	session, err := s.sessions.GetByID(ctx, req.UserID, req.SessionID)
	if err != nil {
		return nil, err
	}

	history, err := s.messages.ListRecent(ctx, session.ID, s.history)
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	userMsg := &model.Message{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Role:      model.RoleUser,
		Content:   question,
		Ctime:     now,
	}
	if err := s.messages.Create(ctx, userMsg); err != nil {
		return nil, err
	}
	if session.Title == "" {
		s.setSessionTitle(ctx, session, question)
	}

	// empty retrieval is not an error, it degrades to an ungrounded answer
	chunks, err := s.retriever.Retrieve(ctx, session.NotebookID, req.SourceIDs, question, req.TopK)
	if err != nil {
		return nil, err
	}

	res, err := s.engine.Synthesize(ctx, synthesis.Request{
		Question:     question,
		Chunks:       chunks,
		History:      history,
		Style:        req.Style,
		CustomPrompt: req.CustomPrompt,
		Language:     s.language,
	}, fn)
	if err != nil {
		return nil, err
	}

	assistant := &model.Message{
		ID:          uuid.NewString(),
		SessionID:   session.ID,
		Role:        model.RoleAssistant,
		Content:     res.Text,
		Citations:   res.Citations,
		Grounded:    res.Grounded,
		Interrupted: res.Interrupted,
		Ctime:       time.Now().Unix(),
	}
	if err := s.messages.Create(ctx, assistant); err != nil {
		return nil, err
	}
	if err := s.sessions.Touch(ctx, session.ID, assistant.Ctime); err != nil {
		logutil.GetLogger(ctx).Warn("failed to touch session", zap.Error(err))
	}
	if res.Interrupted {
		return assistant, res.Err
	}
	return assistant, nil
}

func (s *ChatService) setSessionTitle(ctx context.Context, session *model.ChatSession, question string) {
	title := question
	if len(title) > sessionTitleChars {
		cut := sessionTitleChars
		for cut > 0 && title[cut]&0xC0 == 0x80 {
			cut--
		}
		title = title[:cut]
	}
	session.Title = title
	if err := s.sessions.SetTitle(ctx, session.ID, title); err != nil {
		logutil.GetLogger(ctx).Warn("failed to set session title", zap.Error(err))
	}
}
