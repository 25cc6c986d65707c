package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// server wires the pipeline, the store and the config into HTTP handlers.
// It holds no mutable state of its own; per-run model selection stays inside
// each request.
type server struct {
	cfg     Config
	council *Council
	store   *ConversationStore
}

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	invoker := NewOpenRouterClient(cfg.OpenRouterAPIKey, cfg.OpenRouterAPIURL)
	srv := &server{
		cfg:     cfg,
		council: NewCouncil(invoker, cfg),
		store:   NewConversationStore(cfg.DataDir, cfg.ListingCacheTTL),
	}

	router := srv.router()
	log.Printf("Starting LLM Council backend on %s...", cfg.ListenAddr)
	if err := router.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// router builds the gin engine with middleware and routes.
func (s *server) router() *gin.Engine {
	router := gin.Default()

	// Request size limit middleware
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxRequestBodySize)
		c.Next()
	})

	// CORS middleware with dynamic origin validation
	router.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			// In production, use environment-configured origins
			if len(s.cfg.CORSAllowedOrigins) > 0 {
				for _, allowedOrigin := range s.cfg.CORSAllowedOrigins {
					if origin == allowedOrigin {
						return true
					}
				}
				return false
			}
			// In development, allow any localhost/127.0.0.1 origin
			return len(origin) > 0 && (len(origin) >= 16 && origin[:16] == "http://localhost" ||
				len(origin) >= 14 && origin[:14] == "http://127.0.0")
		},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
	}))

	router.GET("/", s.healthCheck)
	router.GET("/api/conversations", s.listConversationsHandler)
	router.POST("/api/conversations", s.createConversationHandler)
	router.GET("/api/conversations/:id", s.getConversationHandler)
	router.POST("/api/conversations/:id/message", s.sendMessageHandler)
	router.POST("/api/conversations/:id/message/stream", s.sendMessageStreamHandler)
	router.POST("/api/council", s.runCouncilHandler)
	router.POST("/api/council/stage1", s.runStage1Handler)
	router.POST("/api/fetch-url", s.fetchURLHandler)

	return router
}

// healthCheck returns a simple health check response.
// GET / - Returns service status information.
func (s *server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "LLM Council API",
	})
}

// councilErrorJSON writes a structured run-level failure with its machine
// kind. Fatal pipeline kinds map to 502 because the failure is upstream.
func councilErrorJSON(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch KindOf(err) {
	case ErrKindAllProviders, ErrKindSynthesis:
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{
		"error": gin.H{
			"kind":    KindOf(err),
			"message": err.Error(),
		},
	})
}

// listConversationsHandler lists all conversations with metadata only.
// GET /api/conversations - Returns array of conversation metadata sorted by date.
func (s *server) listConversationsHandler(c *gin.Context) {
	conversations, err := s.store.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to list conversations: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, conversations)
}

// createConversationHandler creates a new conversation.
// POST /api/conversations - Generates a new UUID and creates an empty conversation.
func (s *server) createConversationHandler(c *gin.Context) {
	conversationID := uuid.New().String()

	conversation, err := s.store.Create(conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to create conversation: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, conversation)
}

// getConversationHandler gets a specific conversation by ID.
// GET /api/conversations/:id - Returns full conversation including all messages.
func (s *server) getConversationHandler(c *gin.Context) {
	conversationID := c.Param("id")

	conversation, err := s.store.Get(conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to get conversation: %v", err),
		})
		return
	}
	if conversation == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Conversation not found",
		})
		return
	}

	c.JSON(http.StatusOK, conversation)
}

// generateTitleInBackground fills in the conversation title after its first
// message, with a default on failure. Runs detached from the request.
func (s *server) generateTitleInBackground(conversationID string, question string) {
	go func() {
		title, err := s.council.GenerateTitle(context.Background(), question)
		if err != nil {
			log.Printf("Failed to generate title: %v", err)
			title = "New Conversation"
		}
		if err := s.store.UpdateTitle(conversationID, title); err != nil {
			log.Printf("Failed to update title: %v", err)
		}
	}()
}

// sendMessageHandler sends a message and runs the 3-stage council process.
// POST /api/conversations/:id/message - Runs full council and returns the result.
// Use sendMessageStreamHandler for the SSE streaming version.
func (s *server) sendMessageHandler(c *gin.Context) {
	conversationID := c.Param("id")

	var request SendMessageRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	conversation, err := s.store.Get(conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to get conversation: %v", err),
		})
		return
	}
	if conversation == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Conversation not found",
		})
		return
	}

	isFirstMessage := len(conversation.Messages) == 0

	if err := s.store.AddUserMessage(conversationID, request.Content); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to add user message: %v", err),
		})
		return
	}

	if isFirstMessage {
		s.generateTitleInBackground(conversationID, request.Content)
	}

	ctx := c.Request.Context()
	question := buildQuestionWithContext(ctx, request.Content, request.ContextURLs)

	result, err := s.council.Run(ctx, question, RunOptions{})
	if err != nil {
		councilErrorJSON(c, err)
		return
	}

	response := CouncilResponse{CouncilResult: result, ConversationID: conversationID}
	if err := s.store.AddCouncilMessage(conversationID, result); err != nil {
		// The computed result is still returned even when persistence fails.
		perr := newCouncilError(ErrKindPersistence, "failed to save council message", err)
		log.Printf("%v", perr)
		response.PersistenceError = perr.Error()
	}

	c.JSON(http.StatusOK, response)
}

// sendMessageStreamHandler sends a message and streams council progress via SSE.
// POST /api/conversations/:id/message/stream - Emits progress events as the
// pipeline advances and a final complete event carrying the full result.
// The progress sink is fire-and-forget: a dead client never affects the run.
func (s *server) sendMessageStreamHandler(c *gin.Context) {
	conversationID := c.Param("id")

	var request SendMessageRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	conversation, err := s.store.Get(conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to get conversation: %v", err),
		})
		return
	}
	if conversation == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Conversation not found",
		})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	isFirstMessage := len(conversation.Messages) == 0

	if err := s.store.AddUserMessage(conversationID, request.Content); err != nil {
		sendSSEError(c, fmt.Sprintf("Failed to add user message: %v", err))
		return
	}

	if isFirstMessage {
		s.generateTitleInBackground(conversationID, request.Content)
	}

	ctx := c.Request.Context()
	question := buildQuestionWithContext(ctx, request.Content, request.ContextURLs)

	result, err := s.council.Run(ctx, question, RunOptions{
		Notify: func(event string) {
			sendSSEEvent(c, gin.H{"type": "progress", "message": event})
		},
	})
	if err != nil {
		sendSSEError(c, err.Error())
		return
	}

	if err := s.store.AddCouncilMessage(conversationID, result); err != nil {
		perr := newCouncilError(ErrKindPersistence, "failed to save council message", err)
		log.Printf("%v", perr)
		sendSSEEvent(c, gin.H{"type": "persistence_error", "message": perr.Error()})
	}

	sendSSEEvent(c, gin.H{"type": "complete", "data": result})
}

// runCouncilHandler is the one-shot run_council operation.
// POST /api/council - Runs the full pipeline with optional per-request model
// selection and optional persistence into a fresh conversation.
func (s *server) runCouncilHandler(c *gin.Context) {
	var request CouncilRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	result, err := s.council.Run(c.Request.Context(), request.Question, RunOptions{
		CouncilModels: request.CouncilModels,
		ChairmanModel: request.ChairmanModel,
	})
	if err != nil {
		councilErrorJSON(c, err)
		return
	}

	response := CouncilResponse{CouncilResult: result}
	if request.Persist {
		if conversationID, err := s.persistRun(request.Question, result); err != nil {
			log.Printf("%v", err)
			response.PersistenceError = err.Error()
		} else {
			response.ConversationID = conversationID
		}
	}

	c.JSON(http.StatusOK, response)
}

// persistRun saves a completed one-shot run as a new conversation.
func (s *server) persistRun(question string, result *CouncilResult) (string, error) {
	conversationID := uuid.New().String()
	if _, err := s.store.Create(conversationID); err != nil {
		return "", newCouncilError(ErrKindPersistence, "failed to create conversation", err)
	}
	if err := s.store.AddUserMessage(conversationID, question); err != nil {
		return "", newCouncilError(ErrKindPersistence, "failed to save user message", err)
	}
	if err := s.store.AddCouncilMessage(conversationID, result); err != nil {
		return "", newCouncilError(ErrKindPersistence, "failed to save council message", err)
	}
	s.generateTitleInBackground(conversationID, question)
	return conversationID, nil
}

// runStage1Handler is the reduced run_stage1_only operation.
// POST /api/council/stage1 - Collects one round of independent responses.
func (s *server) runStage1Handler(c *gin.Context) {
	var request CouncilRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	responses := s.council.CollectStage1(c.Request.Context(), request.Question, request.CouncilModels)
	successes := SuccessfulResponses(responses)
	if len(successes) == 0 {
		councilErrorJSON(c, newCouncilError(ErrKindAllProviders, "all council models failed to respond", nil))
		return
	}

	c.JSON(http.StatusOK, Stage1Response{
		Question:          request.Question,
		Responses:         responses,
		ModelsQueried:     len(responses),
		ResponsesReceived: len(successes),
	})
}

// fetchURLHandler fetches and extracts content from a given URL.
// POST /api/fetch-url - Body: {"url": "https://..."}
func (s *server) fetchURLHandler(c *gin.Context) {
	var request struct {
		URL string `json:"url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	content, err := FetchURLContent(c.Request.Context(), request.URL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to fetch URL content: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"content": content,
	})
}

// sendSSEEvent sends a Server-Sent Event.
// Marshals data to JSON and writes it with the "data: " prefix.
func sendSSEEvent(c *gin.Context, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("Failed to marshal SSE event: %v", err)
		return
	}
	c.Writer.WriteString(fmt.Sprintf("data: %s\n\n", string(jsonData)))
	c.Writer.Flush()
}

// sendSSEError sends an error event via SSE.
func sendSSEError(c *gin.Context, message string) {
	sendSSEEvent(c, gin.H{"type": "error", "message": message})
}
