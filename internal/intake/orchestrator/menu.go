package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"intake-workers/internal/intake/flow"
	"intake-workers/internal/intake/state"
	"intake-workers/internal/models"
)

type actionKind int

const (
	actionService actionKind = iota
	actionOpenServices
	actionBack
	actionViewStatus
	actionViewBalance
	actionViewDocs
)

// menuItem is one entry of a menu. Selector is its symbolic address; the
// numeric address is its 1-based position.
type menuItem struct {
	Selector string
	Label    string
	Kind     actionKind
	Service  models.ServiceType
}

var mainMenuItems = []menuItem{
	{Selector: "SERVICES", Label: "Our Services", Kind: actionOpenServices},
	{Selector: "VIEW_STATUS", Label: "Account Status", Kind: actionViewStatus},
	{Selector: "VIEW_BALANCE", Label: "Outstanding Balance", Kind: actionViewBalance},
	{Selector: "VIEW_DOCS", Label: "My Documents", Kind: actionViewDocs},
	{Selector: string(models.ServiceFileUpdate), Label: "File Update", Kind: actionService, Service: models.ServiceFileUpdate},
}

var servicesMenuItems = func() []menuItem {
	services := []models.ServiceType{
		models.ServicePaidUpLetter,
		models.ServicePrescription,
		models.ServiceCreditReport,
		models.ServiceSettlement,
		models.ServiceDefaultClearing,
		models.ServiceArrangement,
		models.ServiceJudgmentRemoval,
		models.ServiceDebtReviewRemoval,
		models.ServiceCarApplication,
	}
	items := make([]menuItem, 0, len(services))
	for _, st := range services {
		items = append(items, menuItem{Selector: string(st), Label: st.Label(), Kind: actionService, Service: st})
	}
	return items
}()

var backItem = menuItem{Selector: "MAIN_MENU", Label: "Main Menu", Kind: actionBack}

func itemsFor(s state.State) []menuItem {
	if s == state.ServicesMenu {
		return servicesMenuItems
	}
	return mainMenuItems
}

// matchMenu resolves the numeric key of the current menu or the symbolic
// selector of any menu item.
func matchMenu(current state.State, in flow.Input) (menuItem, bool) {
	choice := in.Choice()
	if choice == "" {
		return menuItem{}, false
	}

	if n, err := strconv.Atoi(choice); err == nil {
		items := itemsFor(current)
		if n >= 1 && n <= len(items) {
			return items[n-1], true
		}
		return menuItem{}, false
	}

	if choice == backItem.Selector {
		return backItem, true
	}
	for _, items := range [][]menuItem{mainMenuItems, servicesMenuItems} {
		for _, it := range items {
			if it.Selector == choice {
				return it, true
			}
		}
	}
	return menuItem{}, false
}

func (o *Orchestrator) handleMenu(ctx context.Context, t *turn) (*Reply, string, error) {
	sess := t.sess

	item, ok := matchMenu(sess.State, t.in)
	if !ok {
		if sess.State == state.MainMenu {
			if doc, found := requestedDocument(sess, t.in.Text()); found {
				return o.persist(ctx, t,
					flow.Reply(fmt.Sprintf("Here is your requested document: *%s*", doc.Kind)).With(flow.SendDocument, doc.URL),
					outcomeMenu)
			}
		}
		return o.persist(ctx, t, withHint(currentMenu(sess)), outcomeMenu)
	}

	switch item.Kind {
	case actionService:
		return o.startService(ctx, t, item.Service)
	case actionOpenServices:
		sess.State = state.ServicesMenu
		return o.persist(ctx, t, servicesMenu(), outcomeMenu)
	case actionBack:
		sess.ResetToMenu()
		return o.persist(ctx, t, mainMenu(sess), outcomeMenu)
	case actionViewStatus:
		return o.persist(ctx, t, flow.Reply(fmt.Sprintf("*Update:* Your status is currently: %s.", sess.AccountStatus)), outcomeMenu)
	case actionViewBalance:
		return o.persist(ctx, t, flow.Reply(fmt.Sprintf("💰 Your outstanding balance is *R%s*.",
			strconv.FormatFloat(sess.OutstandingBalance, 'f', -1, 64))), outcomeMenu)
	case actionViewDocs:
		return o.persist(ctx, t, documentList(sess), outcomeMenu)
	}
	return nil, "", fmt.Errorf("menu action %q not handled", item.Selector)
}

func renderItems(items []menuItem) string {
	var b strings.Builder
	for i, it := range items {
		fmt.Fprintf(&b, "*%d.* %s\n", i+1, it.Label)
	}
	return b.String()
}

func mainMenu(sess *models.Session) flow.Directive {
	text := fmt.Sprintf("Hi *%s*, how can we help you today?\n\n%s\nReply with a number.",
		sess.DisplayName(), renderItems(mainMenuItems))
	return flow.Reply(text).With(flow.SendTemplateMenu, flow.RefMainMenu)
}

func servicesMenu() flow.Directive {
	text := fmt.Sprintf("🛠️ *Our Services*\n\n%s\nReply with a number, or *0* for the Main Menu.",
		renderItems(servicesMenuItems))
	return flow.Reply(text).With(flow.SendTemplateMenu, flow.RefServicesMenu)
}

func currentMenu(sess *models.Session) flow.Directive {
	if sess.State == state.ServicesMenu {
		return servicesMenu()
	}
	return mainMenu(sess)
}

func withHint(d flow.Directive) flow.Directive {
	d.Text = "❓ Sorry, I didn't understand that option.\n\n" + d.Text
	return d
}

func documentList(sess *models.Session) flow.Directive {
	if len(sess.Documents) == 0 {
		return flow.Reply("❌ You don't have any documents ready for download yet.")
	}
	var b strings.Builder
	for i, d := range sess.Documents {
		fmt.Fprintf(&b, "*%d.* %s\n", i+1, d.Kind)
	}
	return flow.Reply(fmt.Sprintf("📂 *Available Documents:*\n\n%s\nType the name of the document you wish to receive.", b.String()))
}

// requestedDocument finds the newest document whose kind appears in text.
func requestedDocument(sess *models.Session, text string) (models.Document, bool) {
	q := strings.ToLower(strings.TrimSpace(text))
	if q == "" {
		return models.Document{}, false
	}
	for i := len(sess.Documents) - 1; i >= 0; i-- {
		d := sess.Documents[i]
		if d.Kind != "" && strings.Contains(q, strings.ToLower(d.Kind)) {
			return d, true
		}
	}
	return models.Document{}, false
}
