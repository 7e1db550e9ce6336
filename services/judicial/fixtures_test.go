package judicial

import (
	"fmt"
	"strings"
)

// cardHTML renders one comunica result card the way the portal lays it out
func cardHTML(processNumber, teor string) string {
	return fmt.Sprintf(`
<article class="card">
  <span class="numero-unico-formatado">%s</span>
  <div class="info-sumary"><b>Órgão:</b> 1ª Vara Cível de Fortaleza</div>
  <div class="info-sumary"><b>Data de disponibilização:</b> 15/03/2024</div>
  <div class="info-sumary"><b>Tipo de comunicação:</b> Intimação</div>
  <div class="info-sumary"><b>Meio:</b> Diário de Justiça Eletrônico Nacional</div>
  <div class="info-sumary"><b>Inteiro teor:</b><a href="https://comunica.pje.jus.br/teor/%s">Clique aqui</a></div>
  <div class="info-sumary"><div class="row"><div class="col-md-10"> MARIA SILVA - OAB CE-12345 </div></div></div>
  <section class="content-texto"><div class="tab_panel2">%s</div></section>
  <ul class="acoes"><li><a title="Imprimir" href="/certidao/%s">Imprimir</a></li></ul>
</article>`, processNumber, processNumber, teor, processNumber)
}

func pageHTML(cards ...string) string {
	return "<html><body><main>" + strings.Join(cards, "\n") + "</main></body></html>"
}

// buildPages returns n pages of size cards each with distinct process numbers
func buildPages(n, size int) []string {
	pages := make([]string, 0, n)
	for p := 0; p < n; p++ {
		var cards []string
		for c := 0; c < size; c++ {
			num := fmt.Sprintf("%07d-56.2024.8.06.0001", p*size+c+1)
			cards = append(cards, cardHTML(num, "Fica a parte intimada para se manifestar no prazo de 15 dias."))
		}
		pages = append(pages, pageHTML(cards...))
	}
	return pages
}
