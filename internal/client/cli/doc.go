// Package cli provides the varejo operator command line.
//
// Every data command restores the saved session, checks the actor's
// permission map for the flag guarding the action and only then calls the
// server. Results are printed as indented JSON on stdout.
//
//	varejo login --email ana@loja.com
//	varejo list clientes
//	varejo update lojas 7 nome="Loja Centro" --attach fachada.png
//	varejo perms set 0b6c... vendas.ver_vendas=true --loja 3
package cli
