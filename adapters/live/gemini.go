package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/jansahayak/agent/domain/repositories"
)

// DefaultModel is the native-audio live model the agent talks to.
const DefaultModel = "gemini-2.5-flash-native-audio-preview-09-2025"

// DefaultVoice is the prebuilt voice used for model speech.
const DefaultVoice = "Kore"

// Transport implements repositories.LiveTransport over the Gemini Live API.
type Transport struct {
	client *genai.Client
	model  string
	voice  string
	logger *zap.Logger
}

// NewTransport creates the live transport. endpoint optionally overrides the
// API base URL; the caller is responsible for only passing TLS endpoints.
func NewTransport(ctx context.Context, apiKey, endpoint string, logger *zap.Logger) (*Transport, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: endpoint}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Transport{
		client: client,
		model:  DefaultModel,
		voice:  DefaultVoice,
		logger: logger,
	}, nil
}

// Connect opens one live session and starts its receive loop. Callbacks are
// invoked from that loop's goroutine.
func (t *Transport) Connect(ctx context.Context, cfg repositories.ConnectConfig, cb repositories.SessionCallbacks) (repositories.LiveConn, error) {
	liveCfg := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: cfg.SystemInstruction}},
		},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: t.voice},
			},
		},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
	if decls := toFunctionDeclarations(cfg.Tools); len(decls) > 0 {
		liveCfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	session, err := t.client.Live.Connect(ctx, t.model, liveCfg)
	if err != nil {
		return nil, fmt.Errorf("live connect: %w", err)
	}

	conn := &liveConn{session: session, cb: cb, logger: t.logger, closed: make(chan struct{})}
	go conn.receiveLoop()
	if cb.OnOpen != nil {
		cb.OnOpen()
	}
	return conn, nil
}

type liveConn struct {
	session *genai.Session
	cb      repositories.SessionCallbacks
	logger  *zap.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

func (c *liveConn) SendAudio(chunk repositories.EncodedAudioChunk) error {
	return c.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{Data: chunk.Data, MIMEType: chunk.MIMEType},
	})
}

func (c *liveConn) SendToolResult(result repositories.ToolResult) error {
	return c.session.SendToolResponse(genai.LiveToolResponseInput{
		FunctionResponses: []*genai.FunctionResponse{{
			ID:       result.ID,
			Name:     result.Name,
			Response: toResponseMap(result.Payload),
		}},
	})
}

func (c *liveConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.session.Close()
	})
	return err
}

func (c *liveConn) receiveLoop() {
	for {
		msg, err := c.session.Receive()
		if err != nil {
			select {
			case <-c.closed:
				// Local close; the driver already moved on.
			default:
				if errors.Is(err, io.EOF) {
					if c.cb.OnClose != nil {
						c.cb.OnClose()
					}
				} else if c.cb.OnError != nil {
					c.cb.OnError(err)
				}
			}
			return
		}
		c.dispatch(msg)
	}
}

// dispatch lifts one wire message into the transport-neutral form. Audio
// parts are delivered individually, in order, before the rest of the
// message's signals.
func (c *liveConn) dispatch(msg *genai.LiveServerMessage) {
	if c.cb.OnMessage == nil {
		return
	}

	var out repositories.ServerMessage
	if sc := msg.ServerContent; sc != nil {
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				if part.InlineData != nil && len(part.InlineData.Data) > 0 {
					c.cb.OnMessage(repositories.ServerMessage{
						Audio: &repositories.EncodedAudioChunk{
							Data:     part.InlineData.Data,
							MIMEType: part.InlineData.MIMEType,
						},
					})
				}
			}
		}
		if sc.InputTranscription != nil {
			out.InputTranscript = sc.InputTranscription.Text
		}
		if sc.OutputTranscription != nil {
			out.OutputTranscript = sc.OutputTranscription.Text
		}
		out.TurnComplete = sc.TurnComplete
		out.Interrupted = sc.Interrupted
	}
	if tc := msg.ToolCall; tc != nil {
		for _, fc := range tc.FunctionCalls {
			args, err := json.Marshal(fc.Args)
			if err != nil {
				if c.logger != nil {
					c.logger.Warn("unserializable tool args", zap.String("tool", fc.Name), zap.Error(err))
				}
				args = []byte("{}")
			}
			out.ToolCalls = append(out.ToolCalls, repositories.ToolCall{
				ID:   fc.ID,
				Name: fc.Name,
				Args: args,
			})
		}
	}

	if out.InputTranscript != "" || out.OutputTranscript != "" ||
		out.TurnComplete || out.Interrupted || len(out.ToolCalls) > 0 {
		c.cb.OnMessage(out)
	}
}

func toFunctionDeclarations(tools []repositories.ToolDeclaration) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		schema := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: map[string]*genai.Schema{},
		}
		for _, p := range t.Parameters {
			pt := genai.TypeString
			if p.Type == "number" {
				pt = genai.TypeNumber
			}
			schema.Properties[p.Name] = &genai.Schema{Type: pt, Description: p.Description}
			if p.Required {
				schema.Required = append(schema.Required, p.Name)
			}
		}
		out = append(out, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schema,
		})
	}
	return out
}

// toResponseMap shapes an arbitrary JSON payload into the map form the wire
// schema requires; non-object payloads are wrapped under "result".
func toResponseMap(payload json.RawMessage) map[string]any {
	if len(payload) == 0 {
		return map[string]any{}
	}
	var obj map[string]any
	if err := json.Unmarshal(payload, &obj); err == nil {
		return obj
	}
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return map[string]any{"result": string(payload)}
	}
	return map[string]any{"result": v}
}
