package content

import (
	"bytes"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/pkg/errors"
)

// 模板名
const (
	TemplateRich    = "rich"
	TemplateSimple  = "simple"
	TemplateMinimal = "minimal"
	TemplatePlain   = "plain"
)

const (
	emptyBodyRich  = "자세한 내용은 원문 링크를 참조해주세요."
	emptyBodyOther = "자세한 내용은 원문을 참조해주세요."
)

// TemplateData 渲染模板需要的字段，Description 和 Body 都是纯文本
type TemplateData struct {
	Title       string
	Link        string
	Description string
	Body        string
	ImageURL    string
	Published   time.Time
	PostedAt    time.Time
}

func koreanDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006. 1. 2.")
}

func paragraphs(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

var funcs = map[string]interface{}{
	"date":       koreanDate,
	"paragraphs": paragraphs,
}

const richTemplate = `<div style="font-family: 'Noto Sans KR', sans-serif; line-height: 1.6; color: #333;">
  <div style="border-left: 4px solid #007bff; padding-left: 20px; margin-bottom: 20px;">
    <h2 style="color: #007bff; margin-bottom: 10px;">{{.Title}}</h2>
    <p style="margin: 5px 0;"><strong>📅 발행일:</strong> {{date .Published}}</p>
    <p style="margin: 5px 0;"><strong>🔗 원문 보기:</strong> <a href="{{.Link}}" target="_blank" style="color: #007bff; text-decoration: none;">기사 원문 링크</a></p>
  </div>
{{- if .ImageURL}}
  <p><img src="{{.ImageURL}}" alt="{{.Title}}" style="max-width: 100%;"></p>
{{- end}}
  <div style="background-color: #f8f9fa; padding: 15px; border-radius: 5px; margin: 15px 0;">
    <h3 style="color: #495057; margin-bottom: 10px;">📰 주요 내용</h3>
{{- if .Description}}
    <p style="font-style: italic; color: #6c757d; margin-bottom: 15px;">{{.Description}}</p>
{{- end}}
    <div style="line-height: 1.8;">
{{- range paragraphs .Body}}
      <p style="margin: 10px 0;">{{.}}</p>
{{- else}}
      <p>` + emptyBodyRich + `</p>
{{- end}}
    </div>
  </div>
  <div style="border-top: 1px solid #dee2e6; padding-top: 15px; margin-top: 20px;">
    <p style="font-size: 0.9em; color: #6c757d;">
      📌 이 글은 구글 뉴스에서 자동으로 수집된 기사입니다.<br>
      ⏰ 자동 포스팅 시간: {{date .PostedAt}}
    </p>
  </div>
</div>`

const simpleTemplate = `<div style="line-height: 1.6;">
  <h2>{{.Title}}</h2>
  <p><strong>발행일:</strong> {{date .Published}}</p>
  <p><strong>원문:</strong> <a href="{{.Link}}" target="_blank">기사 원문 보기</a></p>
  <h3>주요 내용</h3>
{{- if .Description}}
  <p><em>{{.Description}}</em></p>
{{- end}}
  <div>
{{- range paragraphs .Body}}
    <p>{{.}}</p>
{{- else}}
    <p>` + emptyBodyOther + `</p>
{{- end}}
  </div>
  <hr>
  <p><small>구글 뉴스 자동 수집 | {{date .PostedAt}}</small></p>
</div>`

const minimalTemplate = `<h2>{{.Title}}</h2>
<p>발행일: {{date .Published}}</p>
<p>원문: <a href="{{.Link}}" target="_blank">링크</a></p>
{{- if .Description}}
<p>{{.Description}}</p>
{{- end}}
{{- with paragraphs .Body}}
<div>{{range $i, $p := .}}{{if $i}}<br>{{end}}{{$p}}{{end}}</div>
{{- end}}
<p><small>자동 포스팅: {{date .PostedAt}}</small></p>`

const plainTemplate = `{{.Title}}

발행일: {{date .Published}}
원문: {{.Link}}

{{.Description}}

{{if .Body}}{{.Body}}{{else}}` + emptyBodyOther + `{{end}}

---
구글 뉴스 자동 수집 | {{date .PostedAt}}`

var htmlTemplates = map[string]*htmltemplate.Template{
	TemplateRich:    htmltemplate.Must(htmltemplate.New(TemplateRich).Funcs(funcs).Parse(richTemplate)),
	TemplateSimple:  htmltemplate.Must(htmltemplate.New(TemplateSimple).Funcs(funcs).Parse(simpleTemplate)),
	TemplateMinimal: htmltemplate.Must(htmltemplate.New(TemplateMinimal).Funcs(funcs).Parse(minimalTemplate)),
}

var plain = texttemplate.Must(texttemplate.New(TemplatePlain).Funcs(funcs).Parse(plainTemplate))

// IsTemplate 是否为支持的模板名
func IsTemplate(name string) bool {
	_, ok := htmlTemplates[name]
	return ok || name == TemplatePlain
}

// Render 按模板渲染正文。未知模板名按 plain 处理。
func Render(name string, data TemplateData) (string, error) {
	if data.PostedAt.IsZero() {
		data.PostedAt = time.Now()
	}

	var buf bytes.Buffer
	var err error
	if tpl, ok := htmlTemplates[name]; ok {
		err = tpl.Execute(&buf, data)
	} else {
		err = plain.Execute(&buf, data)
	}
	if err != nil {
		return "", errors.Wrapf(err, "render template %s", name)
	}
	return strings.TrimSpace(buf.String()), nil
}
