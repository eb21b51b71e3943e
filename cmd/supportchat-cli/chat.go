package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"supportchat/internal/bootstrap"
	"supportchat/internal/config"
	"supportchat/internal/domain"
	"supportchat/internal/files"
	"supportchat/internal/logging"
	"supportchat/internal/ports"
	"supportchat/internal/usecase"
)

const helpText = `명령어:
  /home                처음 메뉴로 돌아가기
  /inquiry <유형>      문의 시작 (paper_request, sales_report, kiosk_menu_update, other)
  /period <기간>       매출 기간 선택 (first_half, second_half, full_year, custom)
  /category <id>       카테고리 FAQ 보기
  /faq <번호>          FAQ 답변 보기
  /attach <경로>       파일 첨부
  /detach <번호>       첨부 파일 삭제
  /rate <1-5>          만족도 평가
  /mic                 음성 입력 시작/종료
  /stream              실시간 음성 입력 시작/종료
  /help                도움말
  /quit                종료`

// chatController is the controller surface the terminal drives.
type chatController interface {
	ports.Conversation
	Mount(ctx context.Context) error
	Attachments() []domain.Attachment
	CaptureStatus() domain.CaptureStatus
	Wait()
}

var errQuit = errors.New("quit")

func runChat(cmd *cobra.Command, opts *rootOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWithOptions(config.Options{EnvFile: opts.envFile, ConfigPath: opts.configPath})
	if err != nil {
		return err
	}
	if opts.debug {
		cfg.Debug = true
	}
	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return err
	}

	view := newTerminalView(cmd.OutOrStdout())
	services, err := bootstrap.BuildWithLogger(view, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := services.Shutdown(); err != nil {
			logger.Warn("shutdown failed", zap.Error(err))
		}
	}()

	return newSession(services.Controller, view, cmd.InOrStdin()).run(ctx)
}

type session struct {
	controller chatController
	view       *terminalView
	in         io.Reader
}

func newSession(controller chatController, view *terminalView, in io.Reader) *session {
	return &session{controller: controller, view: view, in: in}
}

func (s *session) run(ctx context.Context) error {
	if err := s.controller.Mount(ctx); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	s.view.println(helpText)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				s.controller.Wait()
				return nil
			}
			if err := s.handle(ctx, line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				s.view.println("! " + err.Error())
			}
		}
	}
}

func (s *session) handle(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		s.controller.SubmitText(ctx, line)
		return nil
	}

	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "quit", "exit":
		return errQuit
	case "help":
		s.view.println(helpText)
	case "home":
		s.controller.ResetToHome()
	case "inquiry":
		s.controller.SelectCategory(domain.InquiryCategory(arg))
	case "period":
		s.controller.ChoosePeriod(domain.SalesPeriod(arg))
	case "category":
		id, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("카테고리 번호가 올바르지 않습니다: %q", arg)
		}
		s.controller.OpenCategory(ctx, id)
	case "faq":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return fmt.Errorf("FAQ 번호가 올바르지 않습니다: %q", arg)
		}
		s.controller.SelectFAQ(n - 1)
	case "attach":
		att, err := files.Describe(arg)
		if err != nil {
			return err
		}
		s.controller.AddAttachment(att)
	case "detach":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return fmt.Errorf("첨부 번호가 올바르지 않습니다: %q", arg)
		}
		s.controller.RemoveAttachment(n - 1)
	case "rate":
		rating, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("평점은 1부터 5까지입니다: %q", arg)
		}
		key := s.view.lastFeedbackKey()
		if key == "" {
			return errors.New("평가할 항목이 없습니다")
		}
		s.controller.Rate(key, rating)
	case "mic":
		return s.toggleCapture(ctx, domain.CaptureModeUtterance)
	case "stream":
		return s.toggleCapture(ctx, domain.CaptureModeStreaming)
	default:
		return fmt.Errorf("알 수 없는 명령어입니다: /%s", name)
	}
	return nil
}

// toggleCapture stops a running capture of the same mode, otherwise starts
// one. Starting while the other mode records is rejected by the controller,
// which already shows a notice for it.
func (s *session) toggleCapture(ctx context.Context, mode domain.CaptureMode) error {
	status := s.controller.CaptureStatus()
	if status.Active && status.Mode == mode {
		return s.controller.StopCapture(ctx)
	}
	err := s.controller.StartCapture(ctx, mode, s.view)
	if errors.Is(err, usecase.ErrCaptureActive) {
		return nil
	}
	return err
}
