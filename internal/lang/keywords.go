package lang

// Keyword lists are disjoint: tokens shared between two languages in common
// usage ("pardon", "me", "or", "any", "sa") are kept in a single list.
// Multi-word entries are matched as whole phrases.

var malagasyKeywords = []string{
	"misaotra", "veloma", "manao ahoana", "salama", "miarahaba", "tsara", "ratsy", "misy", "tsy misy",
	"mandeha", "mipetraka", "mihinana", "misotro", "matory", "mifoha",
	"trano", "olona", "zavatra", "andro", "volana", "taona", "fotoana",
	"eto", "ao", "izay", "izao", "izany", "izareo",
	"an'ny", "amin'ny", "ho an'ny", "noho ny",
	"fa", "ary", "na", "raha", "raha tsy", "satria", "noho",
	"dia", "kosa", "indray", "avy", "hatrany", "mandra-pahatongany",
	"mba", "mba tsy", "mba ho", "mba hitranga", "mba hatao",
	"toy", "toy ny", "tahaka", "tahaka ny", "karazana", "karazany",
	"be", "kely", "lehibe", "maro", "vitsy", "rehetra", "tsirairay", "tompoko",
	"aiza", "ahoana", "anareo", "ianao", "kay", "ve",
	"fomba", "manao", "mametraka", "mampiasa",
}

var frenchKeywords = []string{
	"bonjour", "bonsoir", "salut", "merci", "de rien", "excusez-moi", "pardon",
	"oui", "non", "peut-être", "bien", "mal", "bon", "mauvais", "grand", "petit",
	"beaucoup", "peu", "trop", "assez", "très", "plutôt", "vraiment", "sûrement",
	"je", "tu", "il", "elle", "nous", "vous", "ils", "elles", "te", "se",
	"mon", "ton", "son", "ma", "ta", "sa", "mes", "tes", "ses", "notre", "votre",
	"leur", "nos", "vos", "leurs", "ce", "cette", "ces", "cet", "un", "une", "des",
	"le", "la", "les", "du", "de la", "au", "aux", "dans", "sur", "sous",
	"avec", "sans", "pour", "par", "vers", "chez", "entre", "parmi", "devant",
	"derrière", "à côté", "loin", "près", "ici", "là", "où", "quand", "comment",
	"pourquoi", "qui", "que", "quoi", "dont", "lequel", "laquelle", "lesquels",
	"lesquelles", "et", "ou", "mais", "donc", "ni", "car", "puisque",
	"parce que", "afin que", "bien que", "quoique", "si", "comme", "ainsi",
	"alors", "ensuite", "puis", "après", "avant", "pendant", "depuis",
	"jusqu'à", "environ", "presque", "tout", "tous", "toute", "toutes",
}

var englishKeywords = []string{
	"hello", "hi", "good morning", "good afternoon", "good evening", "good night",
	"thank you", "thanks", "you're welcome", "excuse me", "sorry",
	"yes", "no", "maybe", "well", "bad", "good", "big", "small", "large", "little",
	"much", "many", "few", "too", "enough", "very", "really", "surely",
	"i", "you", "he", "she", "it", "we", "they", "me", "him", "her", "us", "them",
	"my", "your", "his", "its", "our", "their", "mine", "yours", "hers",
	"ours", "theirs", "this", "that", "these", "those", "a", "an", "the",
	"in", "on", "at", "by", "for", "with", "without", "to", "from", "of", "about",
	"under", "over", "above", "below", "between", "among", "through", "during",
	"before", "after", "since", "until", "while", "where", "when", "why", "how",
	"who", "what", "which", "whose", "whom", "and", "or", "but", "so", "yet",
	"because", "if", "unless", "although", "though", "as", "like", "than",
	"then", "now", "here", "there", "everywhere", "somewhere", "anywhere",
	"all", "some", "any", "every", "each", "both", "either", "neither",
}

// malagasyPatternWords catch particles and pronouns. Words listed in
// patternAlreadyCounted are skipped since the keyword pass owns them.
var malagasyPatternWords = []string{
	"ny", "no", "kay", "ve",
	"aiza", "ahoana", "anareo", "izareo", "ianao",
	"misy", "tsy",
}

var patternAlreadyCounted = []string{
	"aiza", "ahoana", "anareo", "izareo", "ianao", "misy", "tsy", "kay", "ve",
}
