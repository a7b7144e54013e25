package orchestrator

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"intake-workers/internal/common/validation"
	"intake-workers/internal/intake/flow"
	"intake-workers/internal/intake/state"
	"intake-workers/internal/intake/store"
	"intake-workers/internal/models"
)

const minNameLength = 2

func (o *Orchestrator) handleOnboarding(ctx context.Context, t *turn) (*Reply, string, error) {
	sess := t.sess
	text := t.in.Text()

	switch sess.State {
	case state.AwaitingID:
		id := strings.ReplaceAll(text, " ", "")
		if !validation.ValidateLegalID(id) {
			return o.persist(ctx, t, flow.Reply("❌ That ID Number is not valid. Please enter your 13-digit *ID Number*."), outcomeOnboarding)
		}

		owner, err := o.deps.Sessions.FindByLegalID(ctx, id)
		switch {
		case err == nil && owner.Identity == sess.Identity:
			sess.ResetToMenu()
			return o.persist(ctx, t, mainMenu(sess), outcomeOnboarding)
		case err == nil:
			o.log.Warn("Legal ID already linked to another identity", map[string]interface{}{
				"identity": sess.Identity,
			})
			return o.persist(ctx, t, flow.Reply("⚠️ Security Alert: This ID is linked to another number."), outcomeOnboarding)
		case !stderrors.Is(err, store.ErrNotFound):
			return nil, "", err
		}

		sess.LegalID = id
		sess.State = state.OnboardingName
		return o.persist(ctx, t, flow.Reply("ID not found. Let's register you! 📝\n\nWhat is your *Full Name*?"), outcomeOnboarding)

	case state.OnboardingName:
		if utf8.RuneCountInString(text) < minNameLength {
			return o.persist(ctx, t, flow.Reply("Please enter your *Full Name*."), outcomeOnboarding)
		}
		sess.FullName = text
		sess.State = state.OnboardingEmail
		return o.persist(ctx, t, flow.Reply(fmt.Sprintf("Thanks, %s! What is your *Email Address*?", text)), outcomeOnboarding)

	case state.OnboardingEmail:
		email := strings.ToLower(text)
		if !validation.ValidateEmail(email) {
			return o.persist(ctx, t, flow.Reply("❌ That doesn't look like a valid email address. Please try again."), outcomeOnboarding)
		}
		sess.Email = email
		sess.AccountStatus = models.AccountActive
		sess.State = state.MainMenu
		return o.persist(ctx, t, mainMenu(sess), outcomeOnboarding)
	}

	return nil, "", fmt.Errorf("onboarding state %s not handled", sess.State)
}
