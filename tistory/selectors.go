package tistory

import "time"

// 候选列表按可信度从高到低排列

const (
	shortWait  = 1 * time.Second
	normalWait = 2 * time.Second
	longWait   = 3 * time.Second
)

var kakaoLoginCandidates = []SelectorCandidate{
	CSS(`a.btn_login.link_kakao_id`, longWait),
	CSS(`.btn_login.link_kakao_id`, longWait),
	CSS(`a[class*="kakao"]`, longWait),
	CSS(`.link_kakao_id`, longWait),
	Text("a", longWait, "카카오계정으로 로그인"),
}

var loginIDCandidates = []SelectorCandidate{
	CSS(`input[name="loginId"]`, normalWait),
	CSS(`input[name="loginKey"]`, normalWait),
	CSS(`input[name="username"]`, normalWait),
	CSS(`input[name="email"]`, normalWait),
	CSS(`input[type="email"]`, normalWait),
	CSS(`input[placeholder*="아이디"]`, normalWait),
	CSS(`input[placeholder*="카카오메일"]`, normalWait),
	CSS(`input[placeholder*="이메일"]`, normalWait),
	CSS(`#loginId`, normalWait),
	CSS(`#username`, normalWait),
	CSS(`#email`, normalWait),
	CSS(`input[data-testid="email"]`, normalWait),
	CSS(`input[data-testid="username"]`, normalWait),
	CSS(`.input-email`, normalWait),
	CSS(`.login-input`, normalWait),
}

var passwordCandidates = []SelectorCandidate{
	CSS(`input[name="password"]`, normalWait),
	CSS(`input[type="password"]`, normalWait),
	CSS(`#password`, normalWait),
	CSS(`input[placeholder*="비밀번호"]`, normalWait),
	CSS(`input[data-testid="password"]`, normalWait),
	CSS(`.input-password`, normalWait),
}

var loginSubmitCandidates = []SelectorCandidate{
	CSS(`button[type="submit"]`, normalWait),
	CSS(`input[type="submit"]`, normalWait),
	CSS(`.btn_g.highlight`, normalWait),
	CSS(`[data-testid="login-button"]`, normalWait),
	CSS(`#loginBtn`, normalWait),
	CSS(`.btn-login`, normalWait),
	CSS(`.login-btn`, normalWait),
	Text("button", normalWait, "로그인", "Login"),
	CSS(`.submit`, normalWait),
}

var newPostCandidates = []SelectorCandidate{
	Text("a", normalWait, "글쓰기", "새 글", "포스트 작성", "Write"),
	CSS(`a[href*="/manage/newpost"]`, normalWait),
	CSS(`a[href*="newpost"]`, shortWait),
	CSS(`a[href*="write"]`, shortWait),
	CSS(`.btn-write`, shortWait),
	CSS(`.write-btn`, shortWait),
	CSS(`#write-btn`, shortWait),
	CSS(`a[title*="글쓰기"]`, shortWait),
	CSS(`a[title*="새 글"]`, shortWait),
}

var titleCandidates = []SelectorCandidate{
	CSS(`#post-title-inp`, longWait),
	CSS(`textarea[placeholder*="제목"]`, normalWait),
	CSS(`input[name="title"]`, normalWait),
	CSS(`input[placeholder*="제목"]`, normalWait),
	CSS(`input[placeholder*="Title"]`, shortWait),
	CSS(`#title`, shortWait),
	CSS(`#postTitle`, shortWait),
	CSS(`.title-input`, shortWait),
	CSS(`input[data-role="title"]`, shortWait),
	CSS(`.editor-title input`, shortWait),
	CSS(`.write-title input`, shortWait),
	CSS(`input[id*="title"]`, shortWait),
	CSS(`input[class*="title"]`, shortWait),
}

// 编辑器模式
var modeIndicatorCandidates = []SelectorCandidate{
	CSS(`#editor-mode-layer-btn-open`, longWait),
	CSS(`.editor-mode-layer-btn`, normalWait),
}

var rawModeEntryCandidates = []SelectorCandidate{
	CSS(`#editor-mode-html`, longWait),
	Text(".mce-menu-item", shortWait, "HTML"),
}

var visualModeEntryCandidates = []SelectorCandidate{
	CSS(`#editor-mode-kakao`, normalWait),
	Text(".mce-menu-item", shortWait, "기본모드"),
}

// 切换 HTML 模式时可能出现的页面内确认框
var modeModalCandidates = []SelectorCandidate{
	CSS(`.mce-window`, longWait),
	CSS(`.mce-floatpanel`, shortWait),
	CSS(`[role="dialog"]`, shortWait),
	CSS(`.modal-dialog`, shortWait),
	CSS(`.ui-dialog`, shortWait),
	CSS(`.modal`, shortWait),
	CSS(`.layer`, shortWait),
}

var modalConfirmCandidates = []SelectorCandidate{
	CSS(`.mce-window .mce-primary button`, normalWait),
	CSS(`.mce-primary`, shortWait),
	CSS(`.mce-btn-primary`, shortWait),
	Text("button", shortWait, "확인", "OK", "예", "Yes"),
	CSS(`.btn-primary`, shortWait),
	CSS(`.confirm-btn`, shortWait),
	CSS(`[role="dialog"] button[type="submit"]`, shortWait),
}

// 不可预期的弹窗，只做尽力关闭
var popupCandidates = []SelectorCandidate{
	CSS(`[role="dialog"]`, shortWait),
	CSS(`.modal`, shortWait),
	CSS(`.popup`, shortWait),
	CSS(`.popup-layer`, shortWait),
	CSS(`.layer_popup`, shortWait),
	CSS(`.dialog`, shortWait),
}

var popupCloseCandidates = []SelectorCandidate{
	CSS(`[aria-label="닫기"]`, shortWait),
	CSS(`[aria-label="Close"]`, shortWait),
	CSS(`[data-dismiss="modal"]`, shortWait),
	CSS(`.btn-close`, shortWait),
	CSS(`.modal-close`, shortWait),
	CSS(`.popup-close`, shortWait),
	CSS(`.close`, shortWait),
	Text("button", shortWait, "닫기", "취소", "아니오", "무시", "나중에"),
}

// 分类与标签
var categoryButtonCandidates = []SelectorCandidate{
	CSS(`#category-btn`, normalWait),
	CSS(`.category-list`, shortWait),
	CSS(`button[class*="category"]`, shortWait),
}

var tagInputCandidates = []SelectorCandidate{
	CSS(`#tagText`, normalWait),
	CSS(`input[placeholder*="태그"]`, normalWait),
	CSS(`input[name="tag"]`, shortWait),
}

func categoryOptionCandidates(name string) []SelectorCandidate {
	return []SelectorCandidate{
		Text(`#category-list .mce-menu-item`, normalWait, name),
		Text(`[role="option"]`, shortWait, name),
		Text("span", shortWait, name),
	}
}

// 发布
var submitCandidates = []SelectorCandidate{
	CSS(`#publish-layer-btn`, longWait),
	Text("button", normalWait, "완료"),
	CSS(`.btn-publish`, shortWait),
	CSS(`.btn_publish`, shortWait),
	CSS(`button[class*="publish"]`, shortWait),
	CSS(`.publish-btn`, shortWait),
	Text("button", shortWait, "발행", "게시"),
	CSS(`input[value="발행"]`, shortWait),
	CSS(`input[value="게시"]`, shortWait),
	CSS(`[data-role="publish"]`, shortWait),
	CSS(`[data-action="publish"]`, shortWait),
	CSS(`.save-btn`, shortWait),
	CSS(`#save-btn`, shortWait),
}

var confirmCandidates = []SelectorCandidate{
	CSS(`#publish-btn`, longWait),
	CSS(`.btn-layer-publish`, shortWait),
	CSS(`.btn_layer_publish`, shortWait),
	Text("button", shortWait, "공개 발행"),
	CSS(`button[class*="confirm"]`, shortWait),
	CSS(`.confirm-btn`, shortWait),
	CSS(`.ok-btn`, shortWait),
	Text("button", shortWait, "발행", "확인"),
}

var finalPublishCandidates = []SelectorCandidate{
	CSS(`#publish-btn`, normalWait),
	CSS(`.layer_publish .btn_ok`, shortWait),
}

// 兜底扫描时的按钮集合
const clickableSelector = `button, input[type="submit"], input[type="button"], a[role="button"]`

// 注入用的编辑区域
var textareaCandidates = []SelectorCandidate{
	CSS(`textarea[name="content"]`, shortWait),
	CSS(`textarea[id*="content"]`, shortWait),
	CSS(`textarea[class*="content"]`, shortWait),
	CSS(`textarea[placeholder*="내용"]`, shortWait),
	CSS(`.content-textarea`, shortWait),
	CSS(`textarea:not(#post-title-inp)`, shortWait),
}

var editableCandidates = []SelectorCandidate{
	CSS(`[contenteditable="true"]`, shortWait),
	CSS(`.editor-content`, shortWait),
	CSS(`.content-editor`, shortWait),
	CSS(`#editor`, shortWait),
	CSS(`.post-content`, shortWait),
}

var frameBodyCandidates = []SelectorCandidate{
	CSS(`body[contenteditable="true"]`, shortWait),
	CSS(`body#tinymce`, shortWait),
}

var pasteTargetCandidates = []SelectorCandidate{
	CSS(`.CodeMirror`, shortWait),
	CSS(`[contenteditable="true"]`, shortWait),
	CSS(`textarea:not(#post-title-inp)`, shortWait),
}
