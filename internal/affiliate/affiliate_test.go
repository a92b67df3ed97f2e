package affiliate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bissquit/promo-garden/internal/marketplace"
)

func TestBuilder_Generate(t *testing.T) {
	b := NewBuilder(Config{ShopeeAffiliateID: "12345", MagaluPartnerID: "promo", AmazonAssociateTag: "promogarden-20"})

	t.Run("mercado livre passes through", func(t *testing.T) {
		link, err := b.Generate(marketplace.MercadoLivre, "https://www.mercadolivre.com.br/produto/p/MLB123")
		require.NoError(t, err)
		assert.Equal(t, "https://www.mercadolivre.com.br/produto/p/MLB123", link)
	})

	t.Run("shopee gets af_id", func(t *testing.T) {
		link, err := b.Generate(marketplace.Shopee, "https://shopee.com.br/produto-i.1.2?sp_atk=x")
		require.NoError(t, err)
		assert.Contains(t, link, "af_id=12345")
		assert.Contains(t, link, "sp_atk=x", "existing params survive tagging")
	})

	t.Run("magalu gets partner_id", func(t *testing.T) {
		link, err := b.Generate(marketplace.Magalu, "https://www.magazineluiza.com.br/produto/p/123")
		require.NoError(t, err)
		assert.Contains(t, link, "partner_id=promo")
	})

	t.Run("amazon gets associate tag", func(t *testing.T) {
		link, err := b.Generate(marketplace.Amazon, "https://www.amazon.com.br/dp/B0CLTBHXWQ")
		require.NoError(t, err)
		assert.Contains(t, link, "tag=promogarden-20")
	})

	t.Run("http link is rejected", func(t *testing.T) {
		_, err := b.Generate(marketplace.MercadoLivre, "http://www.mercadolivre.com.br/produto/p/MLB123")
		assert.ErrorIs(t, err, ErrInsecureLink)
	})

	t.Run("unparseable url is rejected", func(t *testing.T) {
		_, err := b.Generate(marketplace.Shopee, "://not-a-url")
		assert.ErrorIs(t, err, ErrInsecureLink)
	})
}

func TestBuilder_EmptyCredentialPassesThrough(t *testing.T) {
	b := NewBuilder(Config{})

	link, err := b.Generate(marketplace.Shopee, "https://shopee.com.br/produto-i.1.2")
	require.NoError(t, err)
	assert.Equal(t, "https://shopee.com.br/produto-i.1.2", link)
}
