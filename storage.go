package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// ConversationStore persists conversations as one JSON file each under its
// data directory. All writes are read-modify-write on a whole file, so the
// store serializes them with a single mutex; the pipeline itself holds no
// locks. Listing results are served through a TTL cache invalidated on every
// write.
type ConversationStore struct {
	dataDir string
	mu      sync.Mutex
	listing *ListingCache
}

// NewConversationStore builds a store rooted at dataDir.
func NewConversationStore(dataDir string, listingTTL time.Duration) *ConversationStore {
	return &ConversationStore{
		dataDir: dataDir,
		listing: NewListingCache(listingTTL),
	}
}

func (s *ConversationStore) ensureDataDir() error {
	return os.MkdirAll(s.dataDir, 0755)
}

func (s *ConversationStore) conversationPath(conversationID string) string {
	return filepath.Join(s.dataDir, conversationID+".json")
}

// Create initializes an empty conversation with a default title.
func (s *ConversationStore) Create(conversationID string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conversation := &Conversation{
		ID:        conversationID,
		CreatedAt: time.Now().UTC(),
		Title:     "New Conversation",
		Messages:  []Message{},
	}
	if err := s.save(conversation); err != nil {
		return nil, err
	}
	return conversation, nil
}

// Get loads a conversation by ID. A missing conversation returns nil with
// no error; errors mean the file existed but could not be read or parsed.
func (s *ConversationStore) Get(conversationID string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(conversationID)
}

func (s *ConversationStore) load(conversationID string) (*Conversation, error) {
	path := s.conversationPath(conversationID)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read conversation file: %w", err)
	}

	var conversation Conversation
	if err := json.Unmarshal(data, &conversation); err != nil {
		return nil, fmt.Errorf("failed to parse conversation JSON: %w", err)
	}
	return &conversation, nil
}

func (s *ConversationStore) save(conversation *Conversation) error {
	if err := s.ensureDataDir(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := json.MarshalIndent(conversation, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	path := s.conversationPath(conversation.ID)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write conversation file: %w", err)
	}

	s.listing.Clear()
	return nil
}

// List returns metadata for every stored conversation, newest first.
// Unreadable or invalid files are skipped. Results come from the TTL cache
// when it is fresh.
func (s *ConversationStore) List() ([]ConversationMetadata, error) {
	if cached, ok := s.listing.Get(); ok {
		return cached, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	conversations := make([]ConversationMetadata, 0)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dataDir, entry.Name()))
		if err != nil {
			continue
		}

		var conv Conversation
		if err := json.Unmarshal(data, &conv); err != nil {
			continue
		}

		conversations = append(conversations, ConversationMetadata{
			ID:           conv.ID,
			CreatedAt:    conv.CreatedAt,
			Title:        conv.Title,
			MessageCount: len(conv.Messages),
		})
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].CreatedAt.After(conversations[j].CreatedAt)
	})

	s.listing.Set(conversations)
	return conversations, nil
}

// AddUserMessage appends the user's question to a conversation.
func (s *ConversationStore) AddUserMessage(conversationID string, content string) error {
	return s.appendMessage(conversationID, Message{Role: "user", Content: content})
}

// AddCouncilMessage appends a completed council result to a conversation.
func (s *ConversationStore) AddCouncilMessage(conversationID string, result *CouncilResult) error {
	return s.appendMessage(conversationID, Message{Role: "assistant", Council: result})
}

func (s *ConversationStore) appendMessage(conversationID string, message Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conversation, err := s.load(conversationID)
	if err != nil {
		return err
	}
	if conversation == nil {
		return fmt.Errorf("conversation %s not found", conversationID)
	}

	conversation.Messages = append(conversation.Messages, message)
	return s.save(conversation)
}

// UpdateTitle replaces a conversation's title.
func (s *ConversationStore) UpdateTitle(conversationID string, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conversation, err := s.load(conversationID)
	if err != nil {
		return err
	}
	if conversation == nil {
		return fmt.Errorf("conversation %s not found", conversationID)
	}

	conversation.Title = title
	return s.save(conversation)
}
