package classifier

// Rule names reported on accepted links.
const (
	RuleSiteSection = "site_section"
	RuleKeyword     = "keyword"
	RuleSlug        = "slug"
	RuleDepth       = "depth"
	RuleFeed        = "feed"
)

// siteSections lists the article section prefixes of known news sites,
// keyed by host without "www.".
var siteSections = map[string][]string{
	"latina.pe": {
		"/noticias/", "/tendencias/", "/espectaculos/", "/deportes/", "/tecnologia/",
		"/farandula/", "/actualidad/", "/politica/", "/entretenimiento/", "/series/", "/musica/",
	},
	"rpp.pe": {
		"/noticias/", "/politica/", "/deportes/", "/tecnologia/", "/actualidad/",
		"/peru/", "/mundo/", "/economia/",
	},
	"peru21.pe": {
		"/noticias/", "/actualidad/", "/deportes/", "/politica/", "/lima/",
		"/mundo/", "/espectaculos/", "/economia/",
	},
	"trome.pe": {
		"/noticias/", "/actualidad/", "/deportes/", "/espectaculos/", "/tendencias/",
		"/virales/", "/futbol/",
	},
}

// articleKeywords mark a path as article-like when found anywhere in it.
var articleKeywords = []string{
	"noticia", "noticias", "articulo", "artículo", "news", "story", "reportaje",
	"informe", "actualidad", "tendencia", "deporte", "politica", "espectaculo",
	"farandula", "tecnologia", "mundo", "entretenimiento", "musica", "cine",
	"series", "deportes", "futbol",
}

// excludedFragments reject a link when found anywhere in its host or path.
var excludedFragments = []string{
	"politicas-de-privacidad", "terminos-y-condiciones",
	".pdf", ".doc", ".docx",
	"facebook", "twitter", "instagram", "youtube", "whatsapp",
	"publicidad", "advertisement",
}

// excludedTokens reject a link when any word of its path equals one of them.
// Words are split on "/", "-", "_" and ".".
var excludedTokens = map[string]bool{
	"contacto": true, "nosotros": true, "about": true, "contact": true,
	"privacy": true, "privacidad": true, "terms": true, "terminos": true,
	"login": true, "register": true, "auth": true, "user": true,
	"profile": true, "search": true, "tag": true, "category": true,
	"archivo": true, "anuncio": true, "ads": true, "promocion": true,
	"pdf": true, "document": true, "buscar": true, "etiqueta": true,
	"categoria": true, "autor": true, "author": true,
	"static": true, "assets": true, "files": true,
}

// excludedSegments reject a link when a whole path segment equals one of
// them. Pagination words are common inside headline slugs.
var excludedSegments = map[string]bool{
	"page": true, "pagina": true,
}
