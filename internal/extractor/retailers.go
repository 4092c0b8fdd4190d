package extractor

import "github.com/jonesrussell/north-cloud/pricewatch/internal/domain"

// DefaultRetailers are the rule tables for the supported retailers.
var DefaultRetailers = []RetailerRules{
	{
		Source:             domain.SourceSSG,
		Hosts:              []string{"ssg.com"},
		NameSelectors:      []string{".cdtl_info_tit_txt", ".cdtl_info_tit", ".cdtl_prd_nm"},
		PriceSelectors:     []string{".cdtl_new_price .ssg_price", ".cdtl_price.point .ssg_price", ".cdtl_price .ssg_price"},
		ThumbnailSelectors: []string{"#mainImg", ".cdtl_item_image img"},
		BuyAreaSelectors:   []string{".cdtl_btn_wrap", ".cdtl_opt_btn", "#actionPayment"},
	},
	{
		Source:             domain.SourceGmarket,
		Hosts:              []string{"gmarket.co.kr"},
		NameSelectors:      []string{"h1.itemtit", ".itemtit"},
		PriceSelectors:     []string{"strong.price_real", ".price_real"},
		ThumbnailSelectors: []string{".box__viewer-container img", "#mainImage img"},
		BuyAreaSelectors:   []string{".box__item-buy", ".item_btn", "#coreInsOrderBtn"},
	},
	{
		Source:             domain.SourceAuction,
		Hosts:              []string{"auction.co.kr"},
		NameSelectors:      []string{"h1.itemtit", ".itemtit"},
		PriceSelectors:     []string{"strong.price_real", ".price_real"},
		ThumbnailSelectors: []string{".viewer img", "ul.viewer li.on img"},
		BuyAreaSelectors:   []string{".item_btn", ".box__item-buy"},
	},
	{
		Source:             domain.SourceElevenst,
		Hosts:              []string{"11st.co.kr"},
		NameSelectors:      []string{".c_product_info_title h1", ".c_product_info_title .title"},
		PriceSelectors:     []string{"#finalDscPrcArea .value", ".price_block .value", ".c_product_price .value"},
		ThumbnailSelectors: []string{".img_full img", "#productImg img"},
		BuyAreaSelectors:   []string{".c_product_btn", "#buyButton", ".b_product_buy"},
	},
	{
		Source:             domain.SourceLotteOn,
		Hosts:              []string{"lotteon.com"},
		NameSelectors:      []string{".pd-widget1__title", ".productName"},
		PriceSelectors:     []string{".pd-widget1__price .number", ".final_price .number", ".price .number"},
		ThumbnailSelectors: []string{".pd-image__item img", ".swiper-slide img"},
		BuyAreaSelectors:   []string{".pd-widget1__btn", ".btn_wrap", "#buyNowBtn"},
	},
	{
		Source:             domain.SourceCoupang,
		Hosts:              []string{"coupang.com"},
		RequiresBrowser:    true,
		NameSelectors:      []string{".prod-buy-header__title", "h1.product-title"},
		PriceSelectors:     []string{".prod-sale-price .total-price strong", ".total-price strong", ".final-price-amount"},
		ThumbnailSelectors: []string{"img.prod-image__detail", ".prod-image img"},
		BuyAreaSelectors:   []string{".prod-buy-btn__wrap", ".prod-buy-btn", ".prod-order-btn"},
	},
	{
		Source:             domain.SourceSmartStore,
		Hosts:              []string{"smartstore.naver.com", "brand.naver.com"},
		RequiresBrowser:    true,
		NameSelectors:      []string{"div[class*='headingArea'] h3", "h3[class*='product_title']"},
		PriceSelectors:     []string{"strong[class*='price'] span[class*='price_num']", "span[class*='price_num']"},
		ThumbnailSelectors: []string{"div[class*='bd_'] img[alt='대표이미지']", "img[alt='대표이미지']"},
		BuyAreaSelectors:   []string{"div[class*='buyButton']", "div[class*='purchase']"},
	},
}
