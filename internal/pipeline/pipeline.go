// Package pipeline drives the deal flow: fetch listing pages, extract
// candidates, deduplicate, tag affiliate links, attach coupons, route,
// announce, persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bissquit/promo-garden/internal/affiliate"
	"github.com/bissquit/promo-garden/internal/coupons"
	"github.com/bissquit/promo-garden/internal/deals"
	"github.com/bissquit/promo-garden/internal/domain"
	"github.com/bissquit/promo-garden/internal/marketplace"
	"github.com/bissquit/promo-garden/internal/notify"
	"github.com/bissquit/promo-garden/internal/routing"
	"github.com/bissquit/promo-garden/internal/scrape"
)

// Outcome labels the fate of one candidate deal.
type Outcome string

const (
	OutcomeSent         Outcome = "sent"
	OutcomePersisted    Outcome = "persisted_unsent"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeNoID         Outcome = "no_canonical_id"
	OutcomeInsecureLink Outcome = "insecure_link"
	OutcomeError        Outcome = "error"
)

// CouponIssuer is the slice of the coupon service the processor needs.
type CouponIssuer interface {
	GetOrCreate(ctx context.Context, productID, category string, discountPct float64) (*domain.Coupon, error)
}

// LinkBuilder produces affiliate links per marketplace.
type LinkBuilder interface {
	Generate(m marketplace.Marketplace, originalURL string) (string, error)
}

// Dispatcher fans a deal out to chat channels.
type Dispatcher interface {
	DispatchDeal(ctx context.Context, msg notify.Message, decision routing.Decision) notify.DeliveryStatus
}

// Processor runs one candidate through the full pipeline.
type Processor struct {
	repo       deals.Repository
	links      LinkBuilder
	coupons    CouponIssuer // nil disables coupon issuance
	router     *routing.Router
	dispatcher Dispatcher
}

func NewProcessor(repo deals.Repository, links LinkBuilder, issuer CouponIssuer, router *routing.Router, dispatcher Dispatcher) *Processor {
	return &Processor{
		repo:       repo,
		links:      links,
		coupons:    issuer,
		router:     router,
		dispatcher: dispatcher,
	}
}

// Process takes one extracted candidate to completion. The deal is
// persisted whenever it reaches the announcement stage, whether or not
// any channel accepted it: a deal that failed to send is still burned,
// never re-announced later.
func (p *Processor) Process(ctx context.Context, m marketplace.Marketplace, c scrape.Candidate) (Outcome, error) {
	externalID := marketplace.CanonicalID(m, c.OriginalURL)
	if externalID == "" {
		recordDeal(string(m), string(OutcomeNoID))
		return OutcomeNoID, nil
	}

	processed, err := p.repo.IsProcessed(ctx, externalID)
	if err != nil {
		recordDeal(string(m), string(OutcomeError))
		return OutcomeError, fmt.Errorf("dedup check for %s: %w", externalID, err)
	}
	if processed {
		recordDeal(string(m), string(OutcomeDuplicate))
		return OutcomeDuplicate, nil
	}

	affiliateURL, err := p.links.Generate(m, c.OriginalURL)
	if err != nil {
		if errors.Is(err, affiliate.ErrInsecureLink) {
			slog.Warn("dropping deal with insecure link", "url", c.OriginalURL)
			recordDeal(string(m), string(OutcomeInsecureLink))
			return OutcomeInsecureLink, nil
		}
		recordDeal(string(m), string(OutcomeError))
		return OutcomeError, fmt.Errorf("generate affiliate link: %w", err)
	}

	msg := notify.Message{
		Title:    c.Title,
		Price:    c.Price,
		OldPrice: c.OldPrice,
		Link:     affiliateURL,
		ImageURL: c.ImageURL,
		Category: c.Category,
		Store:    m.StoreName(),
	}

	// Coupons are a bonus: issuance failure never loses the deal.
	if p.coupons != nil && m == marketplace.MercadoLivre {
		coupon, err := p.coupons.GetOrCreate(ctx, externalID, c.Category, 0)
		if err != nil {
			slog.Warn("coupon issuance failed", "external_id", externalID, "error", err)
		} else {
			msg.CouponCode = coupon.CouponCode
			msg.Link = coupons.ApplyToLink(affiliateURL, coupon)
		}
	}

	decision := p.router.Decide(c.Category)
	status := p.dispatcher.DispatchDeal(ctx, msg, decision)

	deal := &domain.Deal{
		ExternalID:   externalID,
		Title:        c.Title,
		Price:        c.Price,
		OriginalURL:  c.OriginalURL,
		AffiliateURL: affiliateURL,
		ImageURL:     c.ImageURL,
		Category:     c.Category,
		Store:        m.StoreName(),
	}
	if err := p.repo.Save(ctx, deal); err != nil {
		if errors.Is(err, deals.ErrAlreadyProcessed) {
			// A concurrent run got there first. The announcement may have
			// doubled, but the record is consistent.
			recordDeal(string(m), string(OutcomeDuplicate))
			return OutcomeDuplicate, nil
		}
		recordDeal(string(m), string(OutcomeError))
		return OutcomeError, fmt.Errorf("persist deal %s: %w", externalID, err)
	}

	if !status.Delivered() {
		slog.Warn("deal persisted but not delivered", "external_id", externalID)
		recordDeal(string(m), string(OutcomePersisted))
		return OutcomePersisted, nil
	}

	slog.Info("deal published",
		"external_id", externalID,
		"title", c.Title,
		"category", c.Category,
		"store", deal.Store,
	)
	recordDeal(string(m), string(OutcomeSent))
	return OutcomeSent, nil
}
