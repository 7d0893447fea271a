package tistory

import "errors"

const (
	siteBase     = "https://demo.tistory.com"
	siteKakao    = "https://accounts.kakao.com/login/?continue=https%3A%2F%2Fwww.tistory.com"
	siteManage   = siteBase + "/manage"
	siteComposer = siteBase + "/manage/newpost/"
	sitePost     = siteBase + "/123"
)

// fakeSite 模拟 Tistory 的登录、写作、发布流程
type fakeSite struct {
	page *fakePage

	ssoButton   *fakeElement
	loginID     *fakeElement
	password    *fakeElement
	loginSubmit *fakeElement
	newPostLink *fakeElement
	title       *fakeElement
	indicator   *fakeElement
	rawEntry    *fakeElement
	modal       *fakeElement
	modalOK     *fakeElement
	tagInput    *fakeElement
	submit      *fakeElement
	confirm     *fakeElement

	editorValue string
	dialogs     []*fakeDialog
}

type siteOption func(*fakeSite)

// withoutRawMode HTML 模式菜单项永远找不到
func withoutRawMode() siteOption {
	return func(s *fakeSite) {
		delete(s.page.screens[siteComposer], `#editor-mode-html`)
	}
}

// withBrokenEditor 所有编辑区域都能写入，但回读为空
func withBrokenEditor() siteOption {
	return func(s *fakeSite) {
		p := s.page
		empty := func() string { return "" }
		accept := func(string) bool { return true }

		p.script(jsEditorSetValue, func([]interface{}) interface{} { return true })
		p.script(jsEditorGetValue, func([]interface{}) interface{} { return "" })
		p.script(jsProbeEditor, func([]interface{}) interface{} { return true })

		textarea := newElement("")
		textarea.setter, textarea.getter = accept, empty
		p.add(siteComposer, `textarea[name="content"]`, textarea)

		editable := newElement("")
		editable.setter, editable.getter = accept, empty
		p.add(siteComposer, `[contenteditable="true"]`, editable)

		frame := newFakePage()
		body := newElement("")
		body.setter, body.getter = accept, empty
		frame.add("", `body[contenteditable="true"]`, body)
		p.frames = append(p.frames, frame)

		p.script(jsClipboardWrite, func([]interface{}) interface{} { return true })
		p.script(jsReadAnySurface, func([]interface{}) interface{} { return "" })
	}
}

// withVisualFrame 可视模式下 TinyMCE 的 iframe
func withVisualFrame() siteOption {
	return func(s *fakeSite) {
		frame := newFakePage()
		frame.add("", `body[contenteditable="true"]`, newElement(""))
		s.page.frames = append(s.page.frames, frame)
	}
}

// withFailingDraftDialog 前 n 次进入写作页时弹出的草稿确认框无法处理
func withFailingDraftDialog(n int) siteOption {
	return func(s *fakeSite) {
		p := s.page
		remaining := n
		p.onNavigate = func(url string) {
			if url != siteComposer {
				return
			}
			d := &fakeDialog{kind: DialogConfirm, message: "저장된 글이 있습니다. 이어서 작성하시겠습니까?"}
			if remaining > 0 {
				remaining--
				d.acceptErr = errors.New("dialog handle lost")
			}
			s.dialogs = append(s.dialogs, p.fireDialog(d))
		}
	}
}

func newFakeSite(opts ...siteOption) *fakeSite {
	p := newFakePage()
	s := &fakeSite{page: p}

	// 登录页 -> Kakao 登录 -> 管理页
	s.ssoButton = newElement("카카오계정으로 로그인")
	s.ssoButton.onClick = func() { p.setURL(siteKakao) }
	p.add(DefaultLoginURL, `a.btn_login.link_kakao_id`, s.ssoButton)

	s.loginID = newElement("")
	s.password = newElement("")
	s.loginSubmit = newElement("로그인")
	s.loginSubmit.onClick = func() { p.setURL(siteManage) }
	p.add(siteKakao, `input[name="loginId"]`, s.loginID)
	p.add(siteKakao, `input[name="password"]`, s.password)
	p.add(siteKakao, `button[type="submit"]`, s.loginSubmit)

	// 博客首页
	s.newPostLink = newElement("글쓰기").withAttr("href", "/manage/newpost/")
	p.add(siteBase, "a", newElement("홈").withAttr("href", "/"), s.newPostLink)

	// 写作页
	s.title = newElement("")
	p.add(siteComposer, `#post-title-inp`, s.title)

	s.indicator = newElement("기본모드")
	p.add(siteComposer, `#editor-mode-layer-btn-open`, s.indicator)

	s.modal = newElement("작성 모드를 변경하시겠습니까?").hide()
	s.modalOK = newElement("확인").hide()
	s.modalOK.onClick = func() {
		s.modal.setHidden(true)
		s.modalOK.setHidden(true)
	}
	p.add(siteComposer, `.mce-window`, s.modal)
	p.add(siteComposer, `.mce-window .mce-primary button`, s.modalOK)

	s.rawEntry = newElement("HTML")
	s.rawEntry.onClick = func() {
		s.indicator.setText("HTML")
		s.modal.setHidden(false)
		s.modalOK.setHidden(false)
	}
	p.add(siteComposer, `#editor-mode-html`, s.rawEntry)

	// HTML 模式下的 CodeMirror
	p.script(jsProbeEditor, func([]interface{}) interface{} {
		return s.indicator.currentText() == "HTML"
	})
	p.script(jsEditorSetValue, func(args []interface{}) interface{} {
		s.editorValue, _ = args[0].(string)
		return true
	})
	p.script(jsEditorGetValue, func([]interface{}) interface{} {
		return s.editorValue
	})

	s.tagInput = newElement("")
	p.add(siteComposer, `#tagText`, s.tagInput)

	s.confirm = newElement("공개 발행").hide()
	s.confirm.onClick = func() {
		s.dialogs = append(s.dialogs, p.fire(DialogAlert, "발행되었습니다"))
		p.setURL(sitePost)
	}
	s.submit = newElement("완료")
	s.submit.onClick = func() { s.confirm.setHidden(false) }
	p.add(siteComposer, `#publish-layer-btn`, s.submit)
	p.add(siteComposer, `#publish-btn`, s.confirm)

	// 进入写作页时询问是否继续上次的草稿
	p.onNavigate = func(url string) {
		if url == siteComposer {
			s.dialogs = append(s.dialogs, p.fire(DialogConfirm, "저장된 글이 있습니다. 이어서 작성하시겠습니까?"))
		}
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *fakeSite) credentials() Credentials {
	return Credentials{LoginID: "user@example.com", Password: "secret", BaseURL: siteBase + "/"}
}
