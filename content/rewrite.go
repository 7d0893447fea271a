package content

import (
	"context"
	"fmt"
	"strings"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"github.com/xpzouying/tistory-autopost/configs"
)

const (
	titleMaxTokens = 100
	tagsMaxTokens  = 100
	// MaxTags 合并后最多保留的标签数
	MaxTags = 8
)

const (
	titlePrompt   = "다음 뉴스 제목을 더 매력적이고 클릭하고 싶게 만들어주세요. 언론사명은 제거하고 핵심 내용만 남겨주세요:\n\n\"%s\""
	contentPrompt = "다음 뉴스 내용을 더 읽기 쉽고 이해하기 쉽게 요약해주세요:\n\n\"%s\""
	tagsPrompt    = "다음 뉴스 기사에 적합한 태그 5개를 쉼표로 구분해서 생성해주세요:\n\n제목: \"%s\"\n내용: \"%s\""

	systemPrompt = "당신은 한국어 뉴스 블로그 편집자입니다. 요청한 결과만 간결하게 답하세요."
)

// Completer 单轮文本补全
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// NewCompleter 按 provider 创建补全客户端，provider 为 none 时返回 nil
func NewCompleter(cfg configs.AIConfig) (Completer, error) {
	switch cfg.Provider {
	case "", configs.ProviderNone:
		return nil, nil
	case configs.ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("openai api key is required")
		}
		return NewOpenAICompleter(cfg), nil
	case configs.ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, errors.New("anthropic api key is required")
		}
		return &AnthropicCompleter{apiKey: cfg.APIKey, model: cfg.Model, temperature: cfg.Temperature}, nil
	default:
		return nil, errors.Errorf("unknown ai provider: %s", cfg.Provider)
	}
}

// OpenAICompleter 调用 Chat Completions，BaseURL 可指向兼容服务
type OpenAICompleter struct {
	client      *openai.Client
	model       string
	temperature float32
}

func NewOpenAICompleter(cfg configs.AIConfig) *OpenAICompleter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}
	return &OpenAICompleter{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: float32(cfg.Temperature),
	}
}

func (c *OpenAICompleter) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", errors.Wrap(err, "openai chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// AnthropicCompleter 通过 llmkit 调用 Messages API
type AnthropicCompleter struct {
	apiKey      string
	model       string
	temperature float64
}

func (c *AnthropicCompleter) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	settings := types.RequestSettings{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: c.temperature,
	}
	resp, err := anthropic.PromptWithSettings(systemPrompt, prompt, "", c.apiKey, settings)
	if err != nil {
		return "", errors.Wrap(err, "anthropic prompt")
	}
	if len(resp.Content) == 0 {
		return "", errors.New("anthropic returned no content")
	}
	return strings.TrimSpace(resp.Content[0].Text), nil
}

// Improved AI 改写后的结果
type Improved struct {
	Title string
	Body  string
	Tags  []string
}

// Improver 改写标题、正文并生成标签。
// 任何一次调用失败时该项保留原文，不影响其余项。
type Improver struct {
	completer   Completer
	cfg         configs.AIConfig
	defaultTags []string
}

func NewImprover(completer Completer, cfg configs.AIConfig, defaultTags []string) *Improver {
	return &Improver{completer: completer, cfg: cfg, defaultTags: defaultTags}
}

func (im *Improver) Improve(ctx context.Context, title, body string) Improved {
	out := Improved{
		Title: title,
		Body:  body,
		Tags:  MergeTags(im.defaultTags, nil, MaxTags),
	}
	if im.completer == nil {
		return out
	}

	if im.cfg.ImproveTitle {
		if text, err := im.completer.Complete(ctx, fmt.Sprintf(titlePrompt, title), titleMaxTokens); err != nil {
			logrus.Warnf("AI 改写标题失败，使用原标题: %v", err)
		} else if text = cleanAIText(text); text != "" {
			out.Title = text
		}
	}

	if im.cfg.ImproveContent && strings.TrimSpace(body) != "" {
		if text, err := im.completer.Complete(ctx, fmt.Sprintf(contentPrompt, body), im.maxTokens()); err != nil {
			logrus.Warnf("AI 改写正文失败，使用原文: %v", err)
		} else if text != "" {
			out.Body = text
		}
	}

	if im.cfg.GenerateTags {
		if text, err := im.completer.Complete(ctx, fmt.Sprintf(tagsPrompt, title, body), tagsMaxTokens); err != nil {
			logrus.Warnf("AI 生成标签失败，使用默认标签: %v", err)
		} else {
			out.Tags = MergeTags(im.defaultTags, splitTags(text), MaxTags)
		}
	}
	return out
}

func (im *Improver) maxTokens() int {
	if im.cfg.MaxTokens > 0 {
		return im.cfg.MaxTokens
	}
	return 1000
}
