package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"supportchat/internal/domain"
	"supportchat/internal/ports"
)

const (
	subMenuHint  = "번호를 입력하거나 클릭하여 세부 문제를 선택하세요."
	subMenuEmpty = "등록된 질문이 없습니다."
	faqNoAnswer  = "등록된 답변이 없습니다."
)

var inquiryDescriptions = map[domain.InquiryCategory]string{
	domain.CategoryPaperRequest:    "영수증 용지 배송 요청",
	domain.CategorySalesReport:     "기간별 매출 내역 요청",
	domain.CategoryKioskMenuUpdate: "키오스크 메뉴 수정 및 추가",
	domain.CategoryOther:           "그 밖의 상담 및 지원 요청",
}

// subMenuState remembers the FAQ list a typed number refers to.
type subMenuState struct {
	category domain.Category
	faqs     []domain.FAQ
}

// MenuNavigator renders the home menu and the per-category FAQ menus.
type MenuNavigator struct {
	catalog ports.Catalog
}

func NewMenuNavigator(catalog ports.Catalog) *MenuNavigator {
	return &MenuNavigator{catalog: catalog}
}

// LoadCategories fetches the backend categories.
func (n *MenuNavigator) LoadCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := n.catalog.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	return categories, nil
}

// LoadFAQs fetches the FAQs of category.
func (n *MenuNavigator) LoadFAQs(ctx context.Context, category domain.Category) (*subMenuState, error) {
	faqs, err := n.catalog.FAQs(ctx, category.ID)
	if err != nil {
		return nil, fmt.Errorf("load faqs for category %d: %w", category.ID, err)
	}
	return &subMenuState{category: category, faqs: faqs}, nil
}

// HomeEntry renders the top-level menu.
func (n *MenuNavigator) HomeEntry(categories []domain.Category) domain.Entry {
	options := make([]domain.MenuOption, 0, len(domain.InquiryCategories))
	for _, category := range domain.InquiryCategories {
		options = append(options, domain.MenuOption{
			Category:    category,
			Title:       categoryTitles[category],
			Description: inquiryDescriptions[category],
		})
	}
	listed := make([]domain.Category, len(categories))
	copy(listed, categories)

	return domain.Entry{
		Key:  newEntryKey(domain.EntryMenuBlock),
		Kind: domain.EntryMenuBlock,
		Text: "POS 시스템, 키오스크 관련 문의를 선택하세요.",
		Menu: &domain.MenuPayload{Inquiries: options, ShowFAQ: true, Categories: listed},
	}
}

// SubMenuEntry renders the FAQ list of state.
func (n *MenuNavigator) SubMenuEntry(state *subMenuState) domain.Entry {
	hint := subMenuHint
	if len(state.faqs) == 0 {
		hint = subMenuEmpty
	}
	faqs := make([]domain.FAQ, len(state.faqs))
	copy(faqs, state.faqs)

	return domain.Entry{
		Key:  newEntryKey(domain.EntrySubMenuBlock),
		Kind: domain.EntrySubMenuBlock,
		Text: state.category.Name,
		SubMenu: &domain.SubMenuPayload{
			Category: state.category,
			FAQs:     faqs,
			Hint:     hint,
		},
	}
}

// AnswerEntry renders the answer of the FAQ at the 0-based index.
func (n *MenuNavigator) AnswerEntry(state *subMenuState, index int) (domain.Entry, bool) {
	if state == nil || index < 0 || index >= len(state.faqs) {
		return domain.Entry{}, false
	}
	faq := state.faqs[index]
	answer := strings.TrimSpace(faq.Answer)
	if answer == "" {
		answer = faqNoAnswer
	}
	return botEntry(faq.Question + "\n\n" + answer), true
}

// FAQIndex maps typed text to a 0-based FAQ index when it is a listed number.
func (n *MenuNavigator) FAQIndex(state *subMenuState, text string) (int, bool) {
	if state == nil {
		return 0, false
	}
	number, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || number < 1 || number > len(state.faqs) {
		return 0, false
	}
	return number - 1, true
}
