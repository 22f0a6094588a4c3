package processor

// stopWords are common English function words excluded from the index.
// Contractions are deliberately absent so terms like "don't" survive.
var stopWords = toSet(
	"a", "about", "above", "after", "again", "against", "all", "also", "am",
	"an", "and", "any", "are", "as", "at", "be", "because", "been", "before",
	"being", "below", "between", "both", "but", "by", "can", "could", "did",
	"do", "does", "doing", "down", "during", "each", "either", "else", "ever",
	"every", "few", "for", "from", "further", "had", "has", "have", "having",
	"he", "her", "here", "hers", "herself", "him", "himself", "his", "how",
	"however", "i", "if", "in", "into", "is", "it", "its", "itself", "just",
	"may", "me", "might", "more", "most", "must", "my", "myself", "neither",
	"no", "nor", "not", "now", "of", "off", "often", "on", "once", "only",
	"or", "other", "ought", "our", "ours", "ourselves", "out", "over", "own",
	"same", "shall", "she", "should", "since", "so", "some", "such", "than",
	"that", "the", "thee", "their", "theirs", "them", "themselves", "then",
	"there", "these", "they", "thine", "this", "those", "thou", "though",
	"through", "thus", "thy", "to", "too", "under", "until", "unto", "up",
	"upon", "us", "very", "was", "we", "were", "what", "whatever", "when",
	"whence", "where", "whereas", "whether", "which", "while", "whilst",
	"who", "whom", "whose", "why", "will", "with", "within", "without",
	"would", "ye", "yet", "you", "your", "yours", "yourself", "yourselves",
	"among", "amongst", "around", "away", "back", "become", "becomes",
	"besides", "beyond", "cannot", "indeed", "least", "less", "many",
	"much", "never", "nothing", "onto", "per", "quite", "rather", "several",
	"still", "toward", "towards", "via",
)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// IsStopWord reports whether a normalised term is excluded from the index.
func IsStopWord(term string) bool {
	_, ok := stopWords[term]
	return ok
}
