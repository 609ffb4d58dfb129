package schema

import "strings"

var abbreviations = map[string]string{
	"nm": "name", "dt": "date", "no": "number", "cd": "code",
	"desc": "description", "amt": "amount", "cnt": "count", "qty": "quantity",
	"addr": "address", "tel": "phone", "ph": "phone", "mob": "phone",
	"biz": "business", "pwd": "password", "passwd": "password", "pw": "password",
	"img": "image", "url": "url", "ip": "ip", "zip": "zipcode",
	"msg": "message", "txt": "text", "subj": "subject",
	"usr": "user", "emp": "employee", "dept": "department", "grp": "group", "cat": "category",
	"lat": "latitude", "lng": "longitude", "lon": "longitude",
	"st": "street", "bal": "balance", "avg": "average",
	"reg": "registered", "mod": "modified", "del": "deleted", "cre": "created",
	"upd": "updated", "yn": "yesno", "stat": "status", "sts": "status",
	"typ": "type", "val": "value", "ord": "order", "seq": "sequence",
	"is": "yesno", "flg": "flag",
}

// commentHints are checked in order against the lower-cased column comment.
var commentHints = []struct {
	meaning string
	words   []string
}{
	{"phone", []string{"phone", "mobile", "telephone"}},
	{"email", []string{"email", "e-mail", "mail"}},
	{"address", []string{"address", "street"}},
	{"zipcode", []string{"zip", "postal"}},
	{"name", []string{"name"}},
	{"password", []string{"password", "secret"}},
	{"title", []string{"title", "subject"}},
	{"description", []string{"description", "content", "comment"}},
	{"date", []string{"date", "time"}},
	{"price", []string{"price", "cost", "amount"}},
	{"count", []string{"count", "qty", "quantity"}},
	{"yesno", []string{"flag", "enabled", "active"}},
	{"country", []string{"country"}},
	{"city", []string{"city"}},
	{"url", []string{"url", "link", "website"}},
}

// AnalyzeMeaning guesses what a column holds from its comment or, failing
// that, from its name with common abbreviations expanded.
func AnalyzeMeaning(colName, comment string) string {
	c := strings.ToLower(comment)
	for _, h := range commentHints {
		for _, w := range h.words {
			if strings.Contains(c, w) {
				return h.meaning
			}
		}
	}

	parts := strings.FieldsFunc(strings.ToLower(colName), func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, p := range parts {
		if full, ok := abbreviations[p]; ok {
			parts[i] = full
		}
	}
	return strings.Join(parts, " ")
}
