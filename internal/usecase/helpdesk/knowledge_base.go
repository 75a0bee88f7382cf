package helpdesk

import (
	"context"
	"strings"

	domainhelpdesk "helpdesk/internal/domain/helpdesk"
	"helpdesk/internal/ports"
	"helpdesk/internal/usecase/rescache"
)

// The knowledge base grows without bound, so search goes to the backend.
func articleOptions(userID func() string, notifier ports.Notifier) rescache.Options[domainhelpdesk.KnowledgeBase] {
	return rescache.Options[domainhelpdesk.KnowledgeBase]{
		Name:   "knowledge base articles",
		Noun:   "article",
		Insert: rescache.Append,
		Search: rescache.SearchRemote,
		Text:   domainhelpdesk.KnowledgeBaseText,
		Scope: func(string) ports.Query {
			return ports.Query{Sort: []string{"createdAt:asc"}}
		},
		SearchQuery: func(base ports.Query, text string) ports.Query {
			return base.WithAnyOf(
				ports.Containsi("title", text),
				ports.Containsi("content", text),
			)
		},
		UserID:   userID,
		Notifier: notifier,
	}
}

type ArticleDraft struct {
	Title    string
	Content  string
	Category string
}

func (d ArticleDraft) validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return validation(domainhelpdesk.ErrTitleRequired)
	}
	if strings.TrimSpace(d.Content) == "" {
		return validation(domainhelpdesk.ErrContentRequired)
	}
	return nil
}

type ArticlePatch struct {
	Title    *string
	Content  *string
	Category *string
}

func (s *Service) LoadArticles(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.articles.Load(ctx)
}

// SearchArticles asks the backend; a blank query returns the loaded list.
func (s *Service) SearchArticles(ctx context.Context, text string) ([]domainhelpdesk.KnowledgeBase, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return s.articles.Search(ctx, text)
}

// FilterArticles matches the loaded articles locally.
func (s *Service) FilterArticles(text string) []domainhelpdesk.KnowledgeBase {
	return s.articles.Filter(text)
}

func (s *Service) CreateArticle(ctx context.Context, draft ArticleDraft) (domainhelpdesk.KnowledgeBase, error) {
	if err := s.check(ctx); err != nil {
		return domainhelpdesk.KnowledgeBase{}, err
	}
	if err := draft.validate(); err != nil {
		return domainhelpdesk.KnowledgeBase{}, err
	}
	input := map[string]any{
		"title":   strings.TrimSpace(draft.Title),
		"content": strings.TrimSpace(draft.Content),
	}
	if category := strings.TrimSpace(draft.Category); category != "" {
		input["category"] = category
	}
	return s.articles.Create(ctx, input)
}

func (s *Service) UpdateArticle(ctx context.Context, id string, patch ArticlePatch) (domainhelpdesk.KnowledgeBase, error) {
	if err := s.check(ctx); err != nil {
		return domainhelpdesk.KnowledgeBase{}, err
	}
	articleID, err := parseID(id)
	if err != nil {
		return domainhelpdesk.KnowledgeBase{}, err
	}

	payload := map[string]any{}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return domainhelpdesk.KnowledgeBase{}, validation(domainhelpdesk.ErrTitleRequired)
		}
		payload["title"] = title
	}
	if patch.Content != nil {
		content := strings.TrimSpace(*patch.Content)
		if content == "" {
			return domainhelpdesk.KnowledgeBase{}, validation(domainhelpdesk.ErrContentRequired)
		}
		payload["content"] = content
	}
	if patch.Category != nil {
		payload["category"] = strings.TrimSpace(*patch.Category)
	}
	if len(payload) == 0 {
		return domainhelpdesk.KnowledgeBase{}, validation(errNothingToUpdate)
	}
	return s.articles.Update(ctx, articleID, payload)
}

func (s *Service) DeleteArticle(ctx context.Context, id string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	articleID, err := parseID(id)
	if err != nil {
		return err
	}
	return s.articles.Delete(ctx, articleID)
}
