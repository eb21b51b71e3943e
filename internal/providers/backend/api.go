package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"supportchat/internal/domain"
)

func (c *Client) Categories(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	if err := c.getJSON(ctx, pathCategories, nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (c *Client) FAQs(ctx context.Context, categoryID int) ([]domain.FAQ, error) {
	query := url.Values{}
	query.Set("category_id", strconv.Itoa(categoryID))
	query.Set("offset", "0")
	query.Set("limit", strconv.Itoa(faqPageLimit))
	query.Set("order_by", faqOrderBy)

	var faqs []domain.FAQ
	if err := c.getJSON(ctx, pathFAQs, query, &faqs); err != nil {
		return nil, err
	}
	return faqs, nil
}

type createSessionRequest struct {
	Title    string `json:"title"`
	Preview  string `json:"preview"`
	Resolved bool   `json:"resolved"`
	ModelID  int    `json:"model_id"`
}

type createSessionResponse struct {
	ID json.RawMessage `json:"id"`
}

func (c *Client) CreateSession(ctx context.Context) (string, error) {
	var resp createSessionResponse
	err := c.postJSON(ctx, pathSessions, createSessionRequest{
		Title:   sessionTitle,
		ModelID: sessionModelID,
	}, &resp)
	if err != nil {
		return "", err
	}
	id := decodeID(resp.ID)
	if id == "" {
		return "", errors.New("backend returned a session without id")
	}
	return id, nil
}

// decodeID accepts numeric and string identifiers.
func decodeID(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err == nil {
		return number.String()
	}
	return ""
}

// sessionRef sends numeric session ids back as numbers.
func sessionRef(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

type qaRequest struct {
	Question    string `json:"question"`
	TopK        int    `json:"top_k"`
	KnowledgeID *int   `json:"knowledge_id"`
}

type qaResponse struct {
	Answer string `json:"answer"`
}

func (c *Client) Ask(ctx context.Context, sessionID string, question domain.Question) (string, error) {
	if sessionID == "" {
		return "", errors.New("chat session is not established")
	}
	var resp qaResponse
	err := c.postJSON(ctx, fmt.Sprintf(pathQA, url.PathEscape(sessionID)), qaRequest{
		Question:    question.Text,
		TopK:        question.TopK,
		KnowledgeID: question.KnowledgeID,
	}, &resp)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Answer), nil
}

type messageRequest struct {
	SessionID any    `json:"session_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
}

func (c *Client) RecordMessage(ctx context.Context, sessionID string, role string, content string) error {
	if sessionID == "" {
		return errors.New("chat session is not established")
	}
	return c.postJSON(ctx, fmt.Sprintf(pathMessages, url.PathEscape(sessionID)), messageRequest{
		SessionID: sessionRef(sessionID),
		Role:      role,
		Content:   content,
	}, nil)
}

func (c *Client) SearchCustomers(ctx context.Context, query string) ([]domain.Customer, error) {
	values := url.Values{}
	values.Set("q", query)

	var customers []domain.Customer
	if err := c.getJSON(ctx, pathCustomers, values, &customers); err != nil {
		return nil, err
	}
	return customers, nil
}

type feedbackRequest struct {
	Rating    int `json:"rating"`
	SessionID any `json:"session_id"`
}

func (c *Client) SendFeedback(ctx context.Context, sessionID string, rating int) error {
	req := feedbackRequest{Rating: rating}
	if sessionID != "" {
		req.SessionID = sessionRef(sessionID)
	}
	return c.postJSON(ctx, pathFeedback, req, nil)
}
